package interfaces

import "finlink/src/models"

// -----------------------------------------------------------------------------
// IHistoryStore defines the contract for the local chat history cache.
// -----------------------------------------------------------------------------

type IHistoryStore interface {

	// Initialize sets up the schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveTurns appends turns for a user.
	SaveTurns(userID string, turns []models.MChatTurn) error

	// -----------------------------------------------------------------------------

	// LoadTurns returns up to limit recent turns in conversation order.
	LoadTurns(userID string, limit int) ([]models.MChatTurn, error)

	// -----------------------------------------------------------------------------

	// CleanupOldTurns removes turns older than the retention policy.
	CleanupOldTurns() error

	// -----------------------------------------------------------------------------

	// Close the underlying connection
	Close() error
}
