package channel

import (
	"context"
	"time"

	"finlink/src/interfaces"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Wall-Clock Scheduler
// -----------------------------------------------------------------------------

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) Stop() bool {
	return t.timer.Stop()
}

// -----------------------------------------------------------------------------

// RealScheduler runs callbacks on wall-clock timers. Tests substitute a
// manual scheduler so reconnect delays need no real waiting.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, fn func()) interfaces.ITimer {
	return &realTimer{timer: time.AfterFunc(d, fn)}
}

// -----------------------------------------------------------------------------
// Websocket Dialer
// -----------------------------------------------------------------------------

// GorillaDialer opens real websocket connections.
type GorillaDialer struct{}

func (GorillaDialer) Dial(ctx context.Context, url string) (interfaces.ISocketConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}
