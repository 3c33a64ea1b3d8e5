package mockserver

import (
	"time"

	"finlink/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type client struct {
	server *Server
	conn   *websocket.Conn
	userID string
	send   chan models.MUpdateEnvelope
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *client) readPump() {
	defer func() {
		c.server.unregister <- c
		c.conn.Close()
		c.server.Logger.Info("Push client disconnected (user %s)", c.userID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.server.Logger.Warning("WebSocket error: %v", err)
			}
			break
		}
		// Inbound heartbeats count as liveness too
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.server.handleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends envelopes to client
// -----------------------------------------------------------------------------

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case envelope, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				c.conn.WriteMessage(websocket.CloseMessage, message)
				return
			}

			if err := c.conn.WriteJSON(envelope); err != nil {
				c.server.Logger.Warning("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
