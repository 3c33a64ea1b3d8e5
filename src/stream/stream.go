package stream

import (
	"context"
	"sync"

	"finlink/src/models"
)

// -----------------------------------------------------------------------------
// ResponseStream
// -----------------------------------------------------------------------------

// ResponseStream is one in-flight request handle. It is created on Send,
// alive while fragments are produced, and terminal after completion or
// cancellation; the terminal states are disjoint and final.
type ResponseStream struct {
	fragments chan models.MStreamFragment
	cancel    context.CancelFunc

	mu        sync.Mutex
	err       error
	toolUsage *models.MToolUsage
	finished  bool
}

// -----------------------------------------------------------------------------

func newResponseStream(cancel context.CancelFunc) *ResponseStream {
	return &ResponseStream{
		fragments: make(chan models.MStreamFragment),
		cancel:    cancel,
	}
}

// -----------------------------------------------------------------------------

// Fragments yields the visible text pieces in arrival order. The channel
// closes when the stream terminates.
func (rs *ResponseStream) Fragments() <-chan models.MStreamFragment {
	return rs.fragments
}

// -----------------------------------------------------------------------------

// Err reports how the stream ended: nil for normal completion,
// helpers.ErrCancelled after a cancel. Meaningful once Fragments has closed.
func (rs *ResponseStream) Err() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.err
}

// -----------------------------------------------------------------------------

// ToolUsage returns the first inline metadata payload seen, or nil.
func (rs *ResponseStream) ToolUsage() *models.MToolUsage {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.toolUsage
}

// -----------------------------------------------------------------------------

// Cancel aborts the underlying transport. Idempotent; after the stream has
// already terminated it is a no-op.
func (rs *ResponseStream) Cancel() {
	rs.cancel()
}

// -----------------------------------------------------------------------------
// internal
// -----------------------------------------------------------------------------

func (rs *ResponseStream) setToolUsage(usage *models.MToolUsage) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.toolUsage != nil {
		return false
	}
	rs.toolUsage = usage
	return true
}

// -----------------------------------------------------------------------------

// finish records the terminal error and closes the fragment channel exactly
// once, whichever exit path gets here first.
func (rs *ResponseStream) finish(err error) {
	rs.mu.Lock()
	if rs.finished {
		rs.mu.Unlock()
		return
	}
	rs.finished = true
	rs.err = err
	rs.mu.Unlock()

	close(rs.fragments)
}
