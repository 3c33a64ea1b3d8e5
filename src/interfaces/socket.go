package interfaces

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// ISocketConn is the minimal websocket surface the channel needs.
// *websocket.Conn from gorilla satisfies it directly.
// -----------------------------------------------------------------------------

type ISocketConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// -----------------------------------------------------------------------------
// ISocketDialer opens websocket connections. Production wraps gorilla's
// dialer; tests substitute an in-memory fake.
// -----------------------------------------------------------------------------

type ISocketDialer interface {
	Dial(ctx context.Context, url string) (ISocketConn, error)
}
