package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Push Channel Structures
// -----------------------------------------------------------------------------

// Topics carried by the push channel. TopicConnection is the server's welcome
// message and is not subscribable.
const (
	TopicPortfolio    = "portfolio"
	TopicAccounts     = "accounts"
	TopicTransactions = "transactions"
	TopicCredit       = "credit"
	TopicMarket       = "market"
	TopicConnection   = "connection"
)

// UpdateTopics lists the subscribable envelope topics.
var UpdateTopics = []string{
	TopicPortfolio,
	TopicAccounts,
	TopicTransactions,
	TopicCredit,
	TopicMarket,
}

// -----------------------------------------------------------------------------

// MUpdateEnvelope is one pushed event. Data stays opaque to the channel; the
// subscribing UI layer interprets it.
type MUpdateEnvelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
	UserID    string          `json:"user_id,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// -----------------------------------------------------------------------------
// Channel State
// -----------------------------------------------------------------------------

// ChannelState tracks the push connection lifecycle; exactly one state holds
// at any time.
type ChannelState int

const (
	StateClosed ChannelState = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s ChannelState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// -----------------------------------------------------------------------------
// Outbound Client Messages
// -----------------------------------------------------------------------------

type MHeartbeat struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type MUpdateRequest struct {
	Type      string `json:"type"`
	Target    string `json:"target"`
	Timestamp string `json:"timestamp"`
}
