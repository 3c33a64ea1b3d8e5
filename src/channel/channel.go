package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"finlink/src/helpers"
	"finlink/src/interfaces"
	"finlink/src/logger"
	"finlink/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const writeWait = 2 * time.Second

// -----------------------------------------------------------------------------
// UpdateChannel
// -----------------------------------------------------------------------------

// UpdateChannel owns exactly one push connection per active user and fans
// inbound envelopes out to topic subscribers, self-healing on abnormal
// disconnects with a linear backoff.
type UpdateChannel struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Dialer    interfaces.ISocketDialer
	Scheduler interfaces.IScheduler

	mu             sync.Mutex
	state          models.ChannelState
	userID         string
	conn           interfaces.ISocketConn
	registry       *Registry
	attempts       int
	reconnectTimer interfaces.ITimer
	heartbeatStop  chan struct{}
	// generation guards the read pump: a stale pump from a replaced
	// connection must not drive the state machine
	gen int
	// session guards reconnect attempts: Disconnect bumps it, so an
	// attempt scheduled before the disconnect can never reopen
	session int
}

// -----------------------------------------------------------------------------

func NewUpdateChannel(cfg *models.MConfig, log *logger.Logger, dialer interfaces.ISocketDialer, scheduler interfaces.IScheduler) *UpdateChannel {
	return &UpdateChannel{
		Config:    cfg,
		Logger:    log,
		Dialer:    dialer,
		Scheduler: scheduler,
		state:     models.StateClosed,
		registry:  NewRegistry(log),
	}
}

// -----------------------------------------------------------------------------
// Connect / Disconnect
// -----------------------------------------------------------------------------

// Connect opens the push connection for userID. No-op while connecting or
// when already open for the same user; an open connection for a different
// user is closed first.
func (c *UpdateChannel) Connect(userID string) error {
	return c.connect(userID, -1)
}

// -----------------------------------------------------------------------------

// connect carries out the dial. A non-negative session marks a scheduled
// reconnect attempt; it proceeds only while that session is still current.
func (c *UpdateChannel) connect(userID string, session int) error {
	c.mu.Lock()

	if session >= 0 && session != c.session {
		// A Disconnect landed after this attempt was scheduled
		c.mu.Unlock()
		return nil
	}

	switch c.state {
	case models.StateConnecting, models.StateClosing:
		c.mu.Unlock()
		return nil
	case models.StateOpen:
		if c.userID == userID {
			c.mu.Unlock()
			return nil
		}
		// Different user takes over the channel
		c.closeConnLocked()
	}

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.state = models.StateConnecting
	c.userID = userID
	c.mu.Unlock()

	timeout := time.Duration(c.Config.Push.ConnectTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	url := fmt.Sprintf("%s/ws/%s", c.Config.Push.WSBase, userID)
	conn, err := c.Dialer.Dial(ctx, url)

	c.mu.Lock()
	if err != nil {
		c.state = models.StateClosed
		c.mu.Unlock()
		if ctx.Err() == context.DeadlineExceeded {
			return helpers.NewTransportError("push connection timed out", err)
		}
		return helpers.NewTransportError("push connection failed", err)
	}

	if c.state != models.StateConnecting {
		// Disconnected while the handshake was in flight
		c.mu.Unlock()
		conn.Close()
		return nil
	}

	c.conn = conn
	c.state = models.StateOpen
	c.attempts = 0
	c.gen++
	gen := c.gen
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.mu.Unlock()

	c.Logger.Info("Push channel open for user %s", userID)

	go c.readPump(conn, gen)
	go c.heartbeatLoop(stop)
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect performs a normal-code close, clears the user and every
// subscription, and cancels any pending reconnect. This is the only way to
// stop the backoff cycle deliberately. Idempotent.
func (c *UpdateChannel) Disconnect() {
	c.mu.Lock()

	c.session++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.userID = ""
	c.attempts = 0
	c.registry.Clear()

	if c.conn == nil {
		c.state = models.StateClosed
		c.mu.Unlock()
		return
	}

	c.state = models.StateClosing
	c.closeConnLocked()
	c.state = models.StateClosed
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// closeConnLocked sends a normal close, tears the connection down and
// invalidates the read pump. Caller holds the mutex.
func (c *UpdateChannel) closeConnLocked() {
	if c.conn == nil {
		return
	}

	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait)); err != nil {
		c.Logger.Debug("Close message failed: %v", err)
	}
	c.conn.Close()
	c.conn = nil
	c.gen++

	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

// -----------------------------------------------------------------------------
// Read Pump & Dispatch
// -----------------------------------------------------------------------------

// readPump acts as the watchdog for the connection: it delivers envelopes
// until the socket errors, then routes the close into the state machine.
func (c *UpdateChannel) readPump(conn interfaces.ISocketConn, gen int) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.dispatch(message)
	}
}

// -----------------------------------------------------------------------------

func (c *UpdateChannel) dispatch(message []byte) {
	var envelope models.MUpdateEnvelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		// One malformed envelope never crashes the channel
		c.Logger.Warning("Dropping malformed envelope: %v", err)
		return
	}
	c.registry.Dispatch(envelope)
}

// -----------------------------------------------------------------------------
// Close Handling & Reconnection
// -----------------------------------------------------------------------------

func (c *UpdateChannel) handleClose(gen int, err error) {
	c.mu.Lock()

	if gen != c.gen {
		// A replaced or deliberately closed connection; nothing to do
		c.mu.Unlock()
		return
	}

	c.conn = nil
	c.gen++
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	c.state = models.StateClosed

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.Logger.Info("Push channel closed normally")
		c.mu.Unlock()
		return
	}

	c.Logger.Warning("Push channel closed abnormally: %v", err)
	c.scheduleReconnectLocked()
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// scheduleReconnectLocked applies the linear backoff policy: delay equals the
// base delay multiplied by the attempt number, up to the attempt cap.
// Caller holds the mutex.
func (c *UpdateChannel) scheduleReconnectLocked() {
	if c.userID == "" {
		return
	}
	if c.attempts >= c.Config.Push.MaxReconnectAttempts {
		c.Logger.Warning("Reconnect attempts exhausted (%d); staying closed", c.attempts)
		return
	}

	c.attempts++
	attempt := c.attempts
	userID := c.userID
	session := c.session
	delay := time.Duration(attempt*c.Config.Push.ReconnectBaseDelayMS) * time.Millisecond

	c.Logger.Info("Scheduling reconnect %d/%d in %v", attempt, c.Config.Push.MaxReconnectAttempts, delay)

	c.reconnectTimer = c.Scheduler.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.state != models.StateClosed || c.userID != userID || c.session != session {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.mu.Unlock()

		if err := c.connect(userID, session); err != nil {
			c.Logger.Warning("Reconnect attempt %d failed: %v", attempt, err)
			c.mu.Lock()
			c.scheduleReconnectLocked()
			c.mu.Unlock()
		}
	})
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// Subscribe registers callback for a topic; the returned function removes
// exactly that registration.
func (c *UpdateChannel) Subscribe(topic string, callback func(models.MUpdateEnvelope)) func() {
	return c.registry.Subscribe(topic, callback)
}

// -----------------------------------------------------------------------------
// Best-Effort Sends
// -----------------------------------------------------------------------------

// RequestUpdate asks the server to push fresh data for a topic. Silently
// ignored unless the channel is open.
func (c *UpdateChannel) RequestUpdate(topic string) {
	c.send(models.MUpdateRequest{
		Type:      "request_update",
		Target:    topic,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// -----------------------------------------------------------------------------

// SendHeartbeat sends a keepalive. Silently ignored unless open.
func (c *UpdateChannel) SendHeartbeat() {
	c.send(models.MHeartbeat{
		Type:      "heartbeat",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// -----------------------------------------------------------------------------

func (c *UpdateChannel) send(v interface{}) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == models.StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		return
	}
	if err := conn.WriteJSON(v); err != nil {
		c.Logger.Debug("Push send failed: %v", err)
	}
}

// -----------------------------------------------------------------------------

// heartbeatLoop keeps the connection warm while it stays open.
func (c *UpdateChannel) heartbeatLoop(stop chan struct{}) {
	interval := time.Duration(c.Config.Push.HeartbeatInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.SendHeartbeat()
		case <-stop:
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Observers
// -----------------------------------------------------------------------------

func (c *UpdateChannel) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == models.StateOpen
}

// -----------------------------------------------------------------------------

func (c *UpdateChannel) State() models.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
