package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"finlink/src/helpers"
	"finlink/src/interfaces"
	"finlink/src/logger"
	"finlink/src/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type readResult struct {
	data []byte
	err  error
}

type fakeConn struct {
	reads chan readResult
	done  chan struct{}
	once  sync.Once

	mu        sync.Mutex
	sent      []interface{}
	closeSent bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads: make(chan readResult, 16),
		done:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-c.reads:
		return websocket.TextMessage, r.data, r.err
	case <-c.done:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.CloseMessage {
		c.closeSent = true
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) sentMessages() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) closeWasSent() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeSent
}

// -----------------------------------------------------------------------------

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	fail  bool
	gate  chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (interfaces.ISocketConn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	fail := d.fail
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, errors.New("connection refused")
	}

	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// -----------------------------------------------------------------------------

type fakeTimer struct {
	mu      sync.Mutex
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	stopped := t.stopped
	t.stopped = true
	return !stopped
}

type scheduledCall struct {
	delay time.Duration
	fn    func()
	timer *fakeTimer
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []*scheduledCall
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) interfaces.ITimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := &scheduledCall{delay: d, fn: fn, timer: &fakeTimer{}}
	s.calls = append(s.calls, call)
	return call.timer
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, 0, len(s.calls))
	for _, call := range s.calls {
		out = append(out, call.delay)
	}
	return out
}

// fire runs the i-th scheduled callback synchronously, skipping stopped timers.
func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	call := s.calls[i]
	call.timer.mu.Lock()
	stopped := call.timer.stopped
	call.timer.mu.Unlock()
	s.mu.Unlock()

	if !stopped {
		call.fn()
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func channelConfig() *models.MConfig {
	return &models.MConfig{
		Name:     "channel-test",
		LogLevel: "ERROR",
		Push: models.MPushConfig{
			WSBase:               "ws://push.test",
			ConnectTimeout:       1,
			HeartbeatInterval:    600,
			ReconnectBaseDelayMS: 100,
			MaxReconnectAttempts: 3,
		},
	}
}

func newTestChannel(t *testing.T) (*UpdateChannel, *fakeDialer, *fakeScheduler) {
	t.Helper()
	dialer := &fakeDialer{}
	scheduler := &fakeScheduler{}
	log := logger.NewLogger(channelConfig(), "channel-test")
	ch := NewUpdateChannel(channelConfig(), log, dialer, scheduler)
	return ch, dialer, scheduler
}

func mustEnvelopeJSON(t *testing.T, topic string) []byte {
	t.Helper()
	data, err := json.Marshal(models.MUpdateEnvelope{
		Type:      topic,
		Data:      json.RawMessage(`{"total_value": 42}`),
		Timestamp: "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	return data
}

// -----------------------------------------------------------------------------
// Connect / Disconnect
// -----------------------------------------------------------------------------

func TestConnectOpensChannelForUser(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	defer ch.Disconnect()

	assert.True(t, ch.IsConnected())
	assert.Equal(t, models.StateOpen, ch.State())
	assert.Equal(t, []string{"ws://push.test/ws/user-42"}, dialer.urls)
}

// -----------------------------------------------------------------------------

func TestConnectSameUserIsNoOp(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	defer ch.Disconnect()
	require.NoError(t, ch.Connect("user-42"))

	assert.Equal(t, 1, dialer.dialCount())
}

// -----------------------------------------------------------------------------

func TestConnectDifferentUserReplacesConnection(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	require.NoError(t, ch.Connect("alice"))
	first := dialer.lastConn()

	require.NoError(t, ch.Connect("bob"))
	defer ch.Disconnect()

	assert.Equal(t, 2, dialer.dialCount())
	assert.True(t, first.closeWasSent())
	assert.Equal(t, "ws://push.test/ws/bob", dialer.urls[1])
	assert.True(t, ch.IsConnected())
}

// -----------------------------------------------------------------------------

func TestConnectWhileConnectingIsNoOp(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	gate := make(chan struct{})
	dialer.gate = gate

	done := make(chan error, 1)
	go func() { done <- ch.Connect("user-42") }()

	require.Eventually(t, func() bool { return dialer.dialCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, models.StateConnecting, ch.State())

	require.NoError(t, ch.Connect("user-42"))
	assert.Equal(t, 1, dialer.dialCount())

	close(gate)
	require.NoError(t, <-done)
	defer ch.Disconnect()
	assert.True(t, ch.IsConnected())
}

// -----------------------------------------------------------------------------

func TestConnectFailureReturnsTransportError(t *testing.T) {
	ch, dialer, scheduler := newTestChannel(t)
	dialer.setFail(true)

	err := ch.Connect("user-42")

	var transportErr *helpers.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, models.StateClosed, ch.State())
	// A failed explicit connect does not start the reconnect cycle
	assert.Equal(t, 0, scheduler.count())
}

// -----------------------------------------------------------------------------

func TestConnectTimeout(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)
	dialer.gate = make(chan struct{}) // never released, dial waits on ctx

	err := ch.Connect("user-42")

	var transportErr *helpers.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, models.StateClosed, ch.State())
}

// -----------------------------------------------------------------------------

func TestDisconnectIsIdempotent(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	conn := dialer.lastConn()

	ch.Disconnect()
	ch.Disconnect()

	assert.Equal(t, models.StateClosed, ch.State())
	assert.False(t, ch.IsConnected())
	assert.True(t, conn.closeWasSent())
}

// -----------------------------------------------------------------------------

func TestDisconnectClearsSubscriptions(t *testing.T) {
	ch, _, _ := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	ch.Subscribe(models.TopicPortfolio, func(models.MUpdateEnvelope) {})
	ch.Subscribe(models.TopicMarket, func(models.MUpdateEnvelope) {})

	ch.Disconnect()

	assert.Equal(t, 0, ch.registry.TopicCount())
}

// -----------------------------------------------------------------------------

func TestDisconnectBeforeConnect(t *testing.T) {
	ch, _, _ := newTestChannel(t)

	ch.Disconnect()
	assert.Equal(t, models.StateClosed, ch.State())
}

// -----------------------------------------------------------------------------
// Dispatch
// -----------------------------------------------------------------------------

func TestEnvelopesReachSubscribers(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	received := make(chan models.MUpdateEnvelope, 1)
	ch.Subscribe(models.TopicPortfolio, func(e models.MUpdateEnvelope) { received <- e })

	require.NoError(t, ch.Connect("user-42"))
	defer ch.Disconnect()

	dialer.lastConn().reads <- readResult{data: mustEnvelopeJSON(t, models.TopicPortfolio)}

	select {
	case e := <-received:
		assert.Equal(t, models.TopicPortfolio, e.Type)
		assert.JSONEq(t, `{"total_value": 42}`, string(e.Data))
	case <-time.After(time.Second):
		t.Fatal("envelope never reached the subscriber")
	}
}

// -----------------------------------------------------------------------------

func TestMalformedEnvelopeIsDropped(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	received := make(chan models.MUpdateEnvelope, 2)
	ch.Subscribe(models.TopicMarket, func(e models.MUpdateEnvelope) { received <- e })

	require.NoError(t, ch.Connect("user-42"))
	defer ch.Disconnect()

	conn := dialer.lastConn()
	conn.reads <- readResult{data: []byte("{not json")}
	conn.reads <- readResult{data: mustEnvelopeJSON(t, models.TopicMarket)}

	select {
	case e := <-received:
		assert.Equal(t, models.TopicMarket, e.Type)
	case <-time.After(time.Second):
		t.Fatal("valid envelope after a malformed one was never delivered")
	}
	assert.True(t, ch.IsConnected())
	assert.Len(t, received, 0)
}

// -----------------------------------------------------------------------------
// Reconnection
// -----------------------------------------------------------------------------

func TestAbnormalCloseSchedulesLinearReconnects(t *testing.T) {
	ch, dialer, scheduler := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	dialer.setFail(true)

	dialer.lastConn().reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}}

	require.Eventually(t, func() bool { return scheduler.count() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, models.StateClosed, ch.State())

	// Every fired attempt fails to dial and schedules the next, up to the cap
	scheduler.fire(0)
	require.Equal(t, 2, scheduler.count())
	scheduler.fire(1)
	require.Equal(t, 3, scheduler.count())
	scheduler.fire(2)
	assert.Equal(t, 3, scheduler.count())

	base := time.Duration(channelConfig().Push.ReconnectBaseDelayMS) * time.Millisecond
	assert.Equal(t, []time.Duration{1 * base, 2 * base, 3 * base}, scheduler.delays())
	assert.Equal(t, 4, dialer.dialCount())
	assert.Equal(t, models.StateClosed, ch.State())
}

// -----------------------------------------------------------------------------

func TestReconnectSucceedsAndResetsAttempts(t *testing.T) {
	ch, dialer, scheduler := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	dialer.lastConn().reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}}

	require.Eventually(t, func() bool { return scheduler.count() == 1 }, time.Second, 5*time.Millisecond)

	scheduler.fire(0)
	defer ch.Disconnect()

	assert.True(t, ch.IsConnected())
	assert.Equal(t, 2, dialer.dialCount())

	// After a successful reconnect the cycle starts over from attempt one
	dialer.lastConn().reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}}
	require.Eventually(t, func() bool { return scheduler.count() == 2 }, time.Second, 5*time.Millisecond)

	base := time.Duration(channelConfig().Push.ReconnectBaseDelayMS) * time.Millisecond
	assert.Equal(t, 1*base, scheduler.delays()[1])
}

// -----------------------------------------------------------------------------

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	ch, dialer, scheduler := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	dialer.lastConn().reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseNormalClosure}}

	require.Eventually(t, func() bool { return ch.State() == models.StateClosed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, scheduler.count())
}

// -----------------------------------------------------------------------------

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	ch, dialer, scheduler := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	dialer.lastConn().reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}}

	require.Eventually(t, func() bool { return scheduler.count() == 1 }, time.Second, 5*time.Millisecond)

	ch.Disconnect()
	scheduler.fire(0)

	assert.Equal(t, 1, scheduler.count())
	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, models.StateClosed, ch.State())
}

// -----------------------------------------------------------------------------

func TestReconnectOvertakenByDisconnectStaysClosed(t *testing.T) {
	ch, dialer, scheduler := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	dialer.lastConn().reads <- readResult{err: &websocket.CloseError{Code: websocket.CloseAbnormalClosure}}

	require.Eventually(t, func() bool { return scheduler.count() == 1 }, time.Second, 5*time.Millisecond)

	// Simulate a disconnect landing after the pending attempt cleared its
	// scheduling checks but before it dialled: the attempt still carries
	// the old session and must die without reopening the channel.
	ch.mu.Lock()
	scheduled := ch.session
	ch.mu.Unlock()
	ch.Disconnect()

	require.NoError(t, ch.connect("user-42", scheduled))

	assert.Equal(t, models.StateClosed, ch.State())
	assert.False(t, ch.IsConnected())
	assert.Equal(t, 1, dialer.dialCount())
}

// -----------------------------------------------------------------------------
// Outbound Sends
// -----------------------------------------------------------------------------

func TestRequestUpdateWhenOpen(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	defer ch.Disconnect()

	ch.RequestUpdate(models.TopicPortfolio)

	sent := dialer.lastConn().sentMessages()
	require.Len(t, sent, 1)
	request, ok := sent[0].(models.MUpdateRequest)
	require.True(t, ok, "expected an update request, got %T", sent[0])
	assert.Equal(t, "request_update", request.Type)
	assert.Equal(t, models.TopicPortfolio, request.Target)
	assert.NotEmpty(t, request.Timestamp)
}

// -----------------------------------------------------------------------------

func TestSendHeartbeatWhenOpen(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	require.NoError(t, ch.Connect("user-42"))
	defer ch.Disconnect()

	ch.SendHeartbeat()

	sent := dialer.lastConn().sentMessages()
	require.Len(t, sent, 1)
	heartbeat, ok := sent[0].(models.MHeartbeat)
	require.True(t, ok, "expected a heartbeat, got %T", sent[0])
	assert.Equal(t, "heartbeat", heartbeat.Type)
	assert.NotEmpty(t, heartbeat.Timestamp)
}

// -----------------------------------------------------------------------------

func TestSendsAreNoOpWhenClosed(t *testing.T) {
	ch, dialer, _ := newTestChannel(t)

	ch.RequestUpdate(models.TopicMarket)
	ch.SendHeartbeat()
	assert.Equal(t, 0, dialer.dialCount())

	require.NoError(t, ch.Connect("user-42"))
	conn := dialer.lastConn()
	ch.Disconnect()

	ch.RequestUpdate(models.TopicMarket)
	ch.SendHeartbeat()
	assert.Empty(t, conn.sentMessages())
}

// -----------------------------------------------------------------------------

func TestStateStringRendering(t *testing.T) {
	assert.Equal(t, "closed", models.StateClosed.String())
	assert.Equal(t, "connecting", models.StateConnecting.String())
	assert.Equal(t, "open", models.StateOpen.String())
	assert.Equal(t, "closing", models.StateClosing.String())
}
