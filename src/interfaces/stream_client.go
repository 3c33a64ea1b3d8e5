package interfaces

import "finlink/src/models"

// -----------------------------------------------------------------------------
// IResponseStream is one in-flight streamed completion.
// -----------------------------------------------------------------------------

type IResponseStream interface {

	// Fragments yields visible text fragments in arrival order. The channel
	// closes on completion or cancellation.
	Fragments() <-chan models.MStreamFragment

	// -----------------------------------------------------------------------------

	// ToolUsage returns the extracted inline metadata, or nil if the stream
	// carried none. Only meaningful once Fragments has closed.
	ToolUsage() *models.MToolUsage

	// -----------------------------------------------------------------------------

	// Err is nil after normal completion, or helpers.ErrCancelled after a
	// cancel. Transport failures never surface here; the fallback path
	// absorbs them. Only meaningful once Fragments has closed.
	Err() error

	// -----------------------------------------------------------------------------

	// Cancel aborts the underlying transport. Idempotent.
	Cancel()
}

// -----------------------------------------------------------------------------
// IStreamClient defines the contract for the streaming completion client.
// -----------------------------------------------------------------------------

type IStreamClient interface {

	// Send issues one streaming request, cancelling any still-active one
	// first. It only fails on an empty message.
	Send(message string, chatCtx models.MChatContext) (IResponseStream, error)

	// -----------------------------------------------------------------------------

	// Cancel invalidates the active request if any. Idempotent.
	Cancel()

	// -----------------------------------------------------------------------------

	// PersistTurns submits a completed exchange to the history store.
	// Best-effort and fire-and-forget.
	PersistTurns(userID string, turns []models.MChatTurn)

	// -----------------------------------------------------------------------------

	// LoadHistory fetches prior turns; returns an empty slice on any failure.
	LoadHistory(userID string) []models.MChatTurn
}
