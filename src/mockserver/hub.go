package mockserver

import (
	"encoding/json"
	"net/http"
	"time"

	"finlink/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// runHub is the main Hub loop
func (s *Server) runHub() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				close(client.send)
			}

		case envelope := <-s.broadcast:
			for client := range s.clients {
				// Envelopes without a user go to everyone
				if envelope.UserID != "" && envelope.UserID != client.userID {
					continue
				}
				out := envelope
				out.UserID = client.userID
				select {
				case client.send <- out:
					// Envelope queued
				default:
					// Client too slow, disconnect to prevent Hub blocking
					delete(s.clients, client)
					close(client.send)
				}
			}

		case <-s.done:
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Envelope Producer
// -----------------------------------------------------------------------------

// runProducer pushes synthetic envelopes, cycling through the topics.
// Market envelopes are skipped while the exchange is closed.
func (s *Server) runProducer() {
	ticker := time.NewTicker(s.Opts.PushInterval)
	defer ticker.Stop()

	next := 0
	for {
		select {
		case <-ticker.C:
			topic := models.UpdateTopics[next%len(models.UpdateTopics)]
			next++

			if topic == models.TopicMarket && !s.marketOpen() {
				continue
			}
			s.broadcast <- makeEnvelope(topic, "")

		case <-s.done:
			return
		}
	}
}

// -----------------------------------------------------------------------------

// makeEnvelope builds a synthetic envelope for a topic.
func makeEnvelope(topic, userID string) models.MUpdateEnvelope {
	now := time.Now().UTC()
	var data interface{}

	switch topic {
	case models.TopicPortfolio:
		data = gin.H{"total_value": 1253400.50, "day_change_percent": 0.8}
	case models.TopicAccounts:
		data = gin.H{"total_balance": 402100.00, "accounts": 3}
	case models.TopicTransactions:
		data = gin.H{"new_transactions": 2, "latest_amount": -1249.99}
	case models.TopicCredit:
		data = gin.H{"score": 782, "delta": 4}
	case models.TopicMarket:
		data = gin.H{"index": "SPX", "value": 5321.76, "change_percent": -0.2}
	default:
		data = gin.H{}
	}

	raw, _ := json.Marshal(data)
	return models.MUpdateEnvelope{
		Type:      topic,
		Data:      raw,
		Timestamp: now.Format(time.RFC3339),
		UserID:    userID,
	}
}

// -----------------------------------------------------------------------------
// WebSocket Handler
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	userID := c.Param("userId")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warning("Failed to upgrade websocket: %v", err)
		return
	}

	client := &client{
		server: s,
		conn:   conn,
		userID: userID,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan models.MUpdateEnvelope, 64),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()

	// Welcome envelope on connect
	client.send <- models.MUpdateEnvelope{
		Type:      models.TopicConnection,
		Message:   "Connected to FinLink push service",
		UserID:    userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// handleClientMessage answers heartbeats and refresh requests.
func (s *Server) handleClientMessage(client *client, message []byte) {
	var inbound struct {
		Type   string `json:"type"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal(message, &inbound); err != nil {
		s.Logger.Warning("Failed to parse client message: %v", err)
		return
	}

	switch inbound.Type {
	case "heartbeat":
		// Keepalive only; nothing to answer
	case "request_update":
		target := inbound.Target
		if target == "" {
			return
		}
		select {
		case client.send <- makeEnvelope(target, client.userID):
		default:
			// Client buffer full; the periodic producer will catch it up
		}
	}
}
