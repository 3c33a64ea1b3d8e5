package mockserver

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"finlink/src/logger"
	"finlink/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Options configures the development backend.
type Options struct {
	Addr string
	// WordDelay paces the event-stream fragments
	WordDelay time.Duration
	// PushInterval drives the synthetic envelope producer; zero disables it
	PushInterval time.Duration
	// MarketHoursOnly gates market envelopes on the NYSE trading calendar
	MarketHoursOnly bool
	// SingleDocument forces the /chat endpoint to answer with one JSON body
	// even when the caller accepts an event-stream
	SingleDocument bool
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server is a development and test backend implementing the chat, history
// and push contracts the client core consumes.
type Server struct {
	Logger *logger.Logger
	Opts   Options
	engine *gin.Engine

	// WebSocket clients
	clients    map[*client]struct{}
	register   chan *client
	unregister chan *client
	broadcast  chan models.MUpdateEnvelope
	done       chan struct{}

	// In-memory history store
	historyMu sync.Mutex
	history   map[string][]models.MChatTurn

	marketCal *tradingCalendar
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(opts Options, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		Logger:     log,
		Opts:       opts,
		engine:     gin.New(),
		clients:    make(map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		// Buffered so a burst of producer ticks never blocks
		broadcast: make(chan models.MUpdateEnvelope, 256),
		done:      make(chan struct{}),
		history:   make(map[string][]models.MChatTurn),
		marketCal: newTradingCalendar(),
	}

	s.engine.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.engine.POST("/chat", s.handleChat)
	s.engine.POST("/chat/history", s.handleSaveHistory)
	s.engine.GET("/chat/history/:userId", s.handleLoadHistory)
	s.engine.GET("/ws/:userId", s.handleWebSocket)
	s.engine.GET("/health", s.getHealth)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Engine exposes the router so tests can mount it on httptest.
func (s *Server) Engine() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

// Start runs the hub loop, the envelope producer and the HTTP listener.
// Blocks until the listener fails.
func (s *Server) Start() error {
	go s.runHub()
	if s.Opts.PushInterval > 0 {
		go s.runProducer()
	}

	s.Logger.Info("Mock backend listening on %s", s.Opts.Addr)
	return s.engine.Run(s.Opts.Addr)
}

// -----------------------------------------------------------------------------

// StartHub runs only the fan-out machinery, for tests that mount Engine()
// themselves.
func (s *Server) StartHub() {
	go s.runHub()
	if s.Opts.PushInterval > 0 {
		go s.runProducer()
	}
}

// -----------------------------------------------------------------------------

func (s *Server) Stop() {
	close(s.done)
}

// -----------------------------------------------------------------------------
// Chat Endpoint
// -----------------------------------------------------------------------------

func (s *Server) handleChat(c *gin.Context) {
	var req models.MChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message cannot be empty"})
		return
	}

	intents := detectIntents(req.Message)
	tools := toolsForIntents(intents)
	reply := composeReply(req, intents)

	wantsStream := strings.Contains(c.GetHeader("Accept"), "text/event-stream")
	if wantsStream && !s.Opts.SingleDocument {
		s.streamChat(c, reply, tools, intents)
		return
	}

	doc := models.MChatDocument{
		Success:         true,
		Response:        reply,
		AIPowered:       false,
		MCPToolsUsed:    tools,
		DetectedIntents: intents,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if len(tools) > 0 {
		doc.ToolInsights = toolInsights(tools)
	}
	c.JSON(http.StatusOK, doc)
}

// -----------------------------------------------------------------------------

// streamChat writes the reply as an event stream, one word per data line,
// with inline tool metadata ahead of the text.
func (s *Server) streamChat(c *gin.Context, reply string, tools, intents []string) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")

	write := func(payload string) bool {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
			return false
		}
		c.Writer.Flush()
		return true
	}

	if len(tools) > 0 {
		usage := models.MToolUsage{Tools: tools, Insights: toolInsights(tools), Intents: intents}
		if line, err := encodeStreamLine(wrapToolUsage(usage)); err == nil {
			if !write(line) {
				return
			}
		}
	}

	words := strings.Fields(reply)
	for i, word := range words {
		fragment := word
		if i < len(words)-1 {
			fragment += " "
		}
		line, err := encodeStreamLine(fragment)
		if err != nil || !write(line) {
			return
		}
		if s.Opts.WordDelay > 0 {
			time.Sleep(s.Opts.WordDelay)
		}
	}

	write("[DONE]")
}

// -----------------------------------------------------------------------------
// History Endpoints
// -----------------------------------------------------------------------------

func (s *Server) handleSaveHistory(c *gin.Context) {
	var sub models.MHistorySubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	s.historyMu.Lock()
	s.history[sub.UserID] = append(s.history[sub.UserID], sub.Messages...)
	s.historyMu.Unlock()

	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

// -----------------------------------------------------------------------------

func (s *Server) handleLoadHistory(c *gin.Context) {
	userID := c.Param("userId")

	s.historyMu.Lock()
	turns := append([]models.MChatTurn(nil), s.history[userID]...)
	s.historyMu.Unlock()

	if turns == nil {
		turns = []models.MChatTurn{}
	}
	c.JSON(http.StatusOK, models.MHistoryResponse{Messages: turns})
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"market_open": s.marketOpen(),
	})
}

// -----------------------------------------------------------------------------

func (s *Server) marketOpen() bool {
	if !s.Opts.MarketHoursOnly {
		return true
	}
	return s.marketCal.isOpen(time.Now())
}
