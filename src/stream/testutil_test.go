package stream

import (
	"testing"

	"finlink/src/interfaces"
	"finlink/src/logger"
	"finlink/src/models"
	"finlink/src/network"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Shared Test Helpers
// -----------------------------------------------------------------------------

func testConfig(baseURL string) *models.MConfig {
	return &models.MConfig{
		Name:     "finlink-test",
		LogLevel: "ERROR",
		API: models.MAPIConfig{
			BaseURL:           baseURL,
			RequestTimeout:    5,
			HistoryWindow:     5,
			SimulateStreaming: true,
			WordDelayMS:       0,
		},
	}
}

// -----------------------------------------------------------------------------

func newTestClient(baseURL string) *StreamClient {
	cfg := testConfig(baseURL)
	log := logger.NewLogger(cfg, "StreamClient")
	return NewStreamClient(cfg, log, network.NewManager(cfg, log), nil)
}

// -----------------------------------------------------------------------------

// collect drains a stream and returns the concatenated text.
func collect(t *testing.T, rs interfaces.IResponseStream) (string, []models.MStreamFragment) {
	t.Helper()

	var full string
	var fragments []models.MStreamFragment
	for fragment := range rs.Fragments() {
		full += fragment.Content
		fragments = append(fragments, fragment)
	}
	return full, fragments
}

// -----------------------------------------------------------------------------

func sampleUsage() models.MToolUsage {
	return models.MToolUsage{
		Tools:   []string{"budget_analyzer"},
		Intents: []string{"budget"},
	}
}

// -----------------------------------------------------------------------------

func requireCompleted(t *testing.T, rs interfaces.IResponseStream) {
	t.Helper()
	require.NoError(t, rs.Err())
}
