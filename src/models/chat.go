package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Chat Conversation Structures
// -----------------------------------------------------------------------------

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MChatTurn is one prior exchange in the conversation.
type MChatTurn struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MFinancialSnapshot summarizes the user's financial position. It feeds the
// request context and the local fallback synthesizer.
type MFinancialSnapshot struct {
	NetWorth         float64 `json:"net_worth"`
	MonthlyIncome    float64 `json:"monthly_income"`
	MonthlyExpenses  float64 `json:"monthly_expenses"`
	SavingsRate      string  `json:"savings_rate"`
	AccountCount     int     `json:"account_count"`
	TransactionCount int     `json:"transaction_count"`
	InvestmentCount  int     `json:"investment_count"`
}

// -----------------------------------------------------------------------------

// MChatContext is the caller-supplied input to one streaming request.
// Snapshot is optional; History holds the full conversation, the client
// transmits only the most recent window.
type MChatContext struct {
	UserID   string
	Snapshot *MFinancialSnapshot
	History  []MChatTurn
}

// -----------------------------------------------------------------------------
// Wire Structures (Matches backend contract exactly)
// -----------------------------------------------------------------------------

type MChatRequestContext struct {
	FinancialSummary    *MFinancialSnapshot `json:"financial_summary"`
	ConversationHistory []MChatTurn         `json:"conversation_history"`
}

type MChatRequest struct {
	Message string              `json:"message"`
	UserID  string              `json:"user_id"`
	Context MChatRequestContext `json:"context"`
}

// -----------------------------------------------------------------------------

// MStreamLine is the payload of one "data: " line in an event-stream response.
type MStreamLine struct {
	Content string `json:"content"`
}

// -----------------------------------------------------------------------------

// MChatDocument is the single-document response shape. The visible text is
// Response, or Message when Response is empty.
type MChatDocument struct {
	Success         bool            `json:"success"`
	Response        string          `json:"response"`
	Message         string          `json:"message"`
	AIPowered       bool            `json:"ai_powered"`
	MCPToolsUsed    []string        `json:"mcp_tools_used"`
	ToolInsights    json.RawMessage `json:"tool_insights"`
	DetectedIntents []string        `json:"detected_intents"`
	Timestamp       string          `json:"timestamp"`
}

// Text returns the visible response text of the document.
func (d *MChatDocument) Text() string {
	if d.Response != "" {
		return d.Response
	}
	return d.Message
}

// -----------------------------------------------------------------------------

// MStreamFragment is one incremental unit of visible text. Concatenating all
// fragments of a completed stream, in order, yields the full response.
type MStreamFragment struct {
	Content string `json:"content"`
}

// -----------------------------------------------------------------------------

// MToolUsage is the out-of-band metadata carried inline between sentinel
// markers; at most one per stream is honored. Insights stays opaque, only the
// hosting UI interprets it.
type MToolUsage struct {
	Tools    []string        `json:"tools"`
	Insights json.RawMessage `json:"insights,omitempty"`
	Intents  []string        `json:"intents"`
}

// -----------------------------------------------------------------------------
// History Endpoints
// -----------------------------------------------------------------------------

type MHistorySubmission struct {
	UserID    string      `json:"user_id"`
	Messages  []MChatTurn `json:"messages"`
	Timestamp int64       `json:"timestamp"`
}

type MHistoryResponse struct {
	Messages []MChatTurn `json:"messages"`
}
