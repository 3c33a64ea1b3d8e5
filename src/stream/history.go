package stream

import (
	"context"
	"time"

	"finlink/src/models"
)

// -----------------------------------------------------------------------------
// History (best-effort)
// -----------------------------------------------------------------------------

// PersistTurns submits a completed exchange to the history endpoint and
// mirrors it into the local cache. Fire-and-forget: failures are logged,
// never surfaced and never retried.
func (c *StreamClient) PersistTurns(userID string, turns []models.MChatTurn) {
	if len(turns) == 0 {
		return
	}

	submission := models.MHistorySubmission{
		UserID:    userID,
		Messages:  turns,
		Timestamp: time.Now().Unix(),
	}

	go func() {
		url := c.Config.API.BaseURL + "/chat/history"
		if err := c.Network.PostJSON(context.Background(), url, submission, nil); err != nil {
			c.Logger.Warning("Failed to persist chat history: %v", err)
		}

		if c.History != nil {
			if err := c.History.SaveTurns(userID, turns); err != nil {
				c.Logger.Warning("Failed to cache chat history locally: %v", err)
			}
		}
	}()
}

// -----------------------------------------------------------------------------

// LoadHistory fetches prior turns from the history endpoint, falling back to
// the local cache and finally to an empty slice. Never returns an error.
func (c *StreamClient) LoadHistory(userID string) []models.MChatTurn {
	url := c.Config.API.BaseURL + "/chat/history/" + userID

	var resp models.MHistoryResponse
	if err := c.Network.GetJSON(context.Background(), url, &resp); err == nil {
		return resp.Messages
	} else {
		c.Logger.Warning("Failed to load chat history: %v", err)
	}

	if c.History != nil {
		if turns, err := c.History.LoadTurns(userID, c.Config.API.HistoryWindow); err == nil {
			return turns
		} else {
			c.Logger.Warning("Failed to load cached history: %v", err)
		}
	}

	return []models.MChatTurn{}
}
