package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"finlink/src/helpers"
	"finlink/src/interfaces"
	"finlink/src/logger"
	"finlink/src/models"
	"finlink/src/network"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// Allow for generously sized single lines (tool payloads can be large)
	maxLineBytes = 1024 * 1024
)

// errNeedFallback marks a transport failure before any fragment was
// delivered; the caller switches to local synthesis instead of surfacing it.
var errNeedFallback = errors.New("stream unavailable")

// -----------------------------------------------------------------------------
// StreamClient
// -----------------------------------------------------------------------------

// StreamClient issues one streaming completion at a time. History is an
// optional local cache; a nil store disables offline mirroring.
type StreamClient struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Network *network.Manager
	History interfaces.IHistoryStore

	mu     sync.Mutex
	active *ResponseStream
}

// -----------------------------------------------------------------------------

func NewStreamClient(cfg *models.MConfig, log *logger.Logger, nm *network.Manager, history interfaces.IHistoryStore) *StreamClient {
	return &StreamClient{
		Config:  cfg,
		Logger:  log,
		Network: nm,
		History: history,
	}
}

// -----------------------------------------------------------------------------
// Send
// -----------------------------------------------------------------------------

// Send starts a new streaming request. Any still-active request is cancelled
// synchronously first, so at most one is ever in flight per client.
func (c *StreamClient) Send(message string, chatCtx models.MChatContext) (interfaces.IResponseStream, error) {
	if strings.TrimSpace(message) == "" {
		return nil, helpers.NewValidationError("message cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rs := newResponseStream(cancel)

	c.mu.Lock()
	if c.active != nil {
		c.active.Cancel()
	}
	c.active = rs
	c.mu.Unlock()

	go c.run(ctx, rs, message, chatCtx)
	return rs, nil
}

// -----------------------------------------------------------------------------

// Cancel invalidates the active request if any. Idempotent.
func (c *StreamClient) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.Cancel()
	}
}

// -----------------------------------------------------------------------------
// Request Lifecycle
// -----------------------------------------------------------------------------

func (c *StreamClient) run(ctx context.Context, rs *ResponseStream, message string, chatCtx models.MChatContext) {
	err := c.runRemote(ctx, rs, message, chatCtx)

	switch {
	case err == nil:
		rs.finish(nil)
	case helpers.IsCancellation(err) || ctx.Err() != nil:
		rs.finish(helpers.ErrCancelled)
	case errors.Is(err, errNeedFallback):
		// Degrade to a locally synthesized reply, never a hard error
		c.runFallback(ctx, rs, message, chatCtx.Snapshot)
	default:
		// A failure after fragments were already delivered: end the stream,
		// the partial response stands on its own.
		c.Logger.Warning("Stream ended early: %v", err)
		rs.finish(nil)
	}
}

// -----------------------------------------------------------------------------

func (c *StreamClient) runRemote(ctx context.Context, rs *ResponseStream, message string, chatCtx models.MChatContext) error {
	payload := c.buildRequest(message, chatCtx)

	body, err := json.Marshal(payload)
	if err != nil {
		c.Logger.Error("Failed to encode chat request: %v", err)
		return errNeedFallback
	}

	req, err := c.Network.NewRequest(ctx, http.MethodPost, c.Config.API.BaseURL+"/chat", body)
	if err != nil {
		c.Logger.Error("Failed to build chat request: %v", err)
		return errNeedFallback
	}
	req.Header.Set("Accept", "text/event-stream, application/json")

	resp, err := c.Network.StreamClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return helpers.ErrCancelled
		}
		c.Logger.Warning("Chat request failed: %v", err)
		return errNeedFallback
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		c.Logger.Warning("Chat request returned status %d", resp.StatusCode)
		return errNeedFallback
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "text/event-stream") {
		return c.consumeEventStream(ctx, rs, resp.Body)
	}
	return c.consumeDocument(ctx, rs, resp.Body)
}

// -----------------------------------------------------------------------------

func (c *StreamClient) buildRequest(message string, chatCtx models.MChatContext) models.MChatRequest {
	history := chatCtx.History
	if window := c.Config.API.HistoryWindow; len(history) > window {
		// Bounded window: keep only the most recent turns, oldest first
		history = history[len(history)-window:]
	}

	return models.MChatRequest{
		Message: message,
		UserID:  chatCtx.UserID,
		Context: models.MChatRequestContext{
			FinancialSummary:    chatCtx.Snapshot,
			ConversationHistory: history,
		},
	}
}

// -----------------------------------------------------------------------------
// Event-Stream Shape
// -----------------------------------------------------------------------------

func (c *StreamClient) consumeEventStream(ctx context.Context, rs *ResponseStream, body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	delivered := false

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		payload := line[len(dataPrefix):]
		if payload == doneSentinel {
			return nil
		}

		var record models.MStreamLine
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			// One bad line never aborts the whole stream
			c.Logger.Debug("Discarding malformed stream line: %v", err)
			continue
		}

		if record.Content == "" {
			continue
		}
		if err := c.emit(ctx, rs, record.Content); err != nil {
			return err
		}
		delivered = true
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return helpers.ErrCancelled
		}
		if !delivered {
			c.Logger.Warning("Stream read failed before any content: %v", err)
			return errNeedFallback
		}
		return err
	}

	// Body ended without [DONE]; treat as graceful completion
	return nil
}

// -----------------------------------------------------------------------------
// Single-Document Shape
// -----------------------------------------------------------------------------

func (c *StreamClient) consumeDocument(ctx context.Context, rs *ResponseStream, body io.Reader) error {
	var doc models.MChatDocument
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		if ctx.Err() != nil {
			return helpers.ErrCancelled
		}
		c.Logger.Warning("Failed to decode chat document: %v", err)
		return errNeedFallback
	}

	// Surface tool metadata through the same inline path the event-stream
	// shape uses, so extraction behaves identically for both.
	if len(doc.MCPToolsUsed) > 0 || len(doc.DetectedIntents) > 0 || len(doc.ToolInsights) > 0 {
		usage := models.MToolUsage{
			Tools:    doc.MCPToolsUsed,
			Insights: doc.ToolInsights,
			Intents:  doc.DetectedIntents,
		}
		if wrapped, err := WrapToolUsage(usage); err == nil {
			if err := c.emit(ctx, rs, wrapped); err != nil {
				return err
			}
		}
	}

	text := doc.Text()
	if !c.Config.API.SimulateStreaming {
		return c.emit(ctx, rs, text)
	}
	return c.emitWords(ctx, rs, text)
}

// -----------------------------------------------------------------------------
// Fragment Delivery
// -----------------------------------------------------------------------------

// emit extracts any inline metadata, strips the sentinels, and hands the
// visible text to the consumer. Fragments left empty by stripping are not
// delivered.
func (c *StreamClient) emit(ctx context.Context, rs *ResponseStream, content string) error {
	if strings.Contains(content, ToolsStartMarker) {
		usage, visible := ExtractToolUsage(content)
		if usage != nil && !rs.setToolUsage(usage) {
			c.Logger.Debug("Ignoring duplicate tool metadata payload")
		}
		content = visible
	}

	if content == "" {
		return nil
	}

	select {
	case rs.fragments <- models.MStreamFragment{Content: content}:
		return nil
	case <-ctx.Done():
		return helpers.ErrCancelled
	}
}

// -----------------------------------------------------------------------------

// emitWords yields text one whitespace-separated token at a time with a
// fixed inter-fragment delay, simulating incremental arrival.
func (c *StreamClient) emitWords(ctx context.Context, rs *ResponseStream, text string) error {
	words := strings.Fields(text)
	delay := time.Duration(c.Config.API.WordDelayMS) * time.Millisecond

	for i, word := range words {
		fragment := word
		if i < len(words)-1 {
			fragment += " "
		}
		if err := c.emit(ctx, rs, fragment); err != nil {
			return err
		}

		if delay > 0 && i < len(words)-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return helpers.ErrCancelled
			}
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *StreamClient) runFallback(ctx context.Context, rs *ResponseStream, message string, snapshot *models.MFinancialSnapshot) {
	reply := SynthesizeReply(message, snapshot)
	if err := c.emitWords(ctx, rs, reply); err != nil {
		rs.finish(helpers.ErrCancelled)
		return
	}
	rs.finish(nil)
}
