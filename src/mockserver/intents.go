package mockserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"finlink/src/models"
	"finlink/src/stream"
)

// -----------------------------------------------------------------------------
// Intent Detection
// -----------------------------------------------------------------------------

// Keyword table for intent detection, following the production backend's
// categories.
var intentKeywords = map[string][]string{
	"budget":     {"budget", "spending", "expenses", "breakdown", "allocat"},
	"savings":    {"save", "saving", "goal", "target", "accumulate"},
	"fraud":      {"fraud", "suspicious", "unusual", "scam", "unauthor"},
	"investment": {"invest", "portfolio", "returns", "stocks", "mutual"},
	"credit":     {"credit", "score", "loan", "emi", "borrow"},
	"tax":        {"tax", "deduction", "income tax", "filing"},
	"emergency":  {"emergency", "contingency", "unexpected", "safety net"},
	"cash_flow":  {"cash flow", "income", "monthly", "inflow", "outflow"},
}

// intentOrder keeps detection output deterministic.
var intentOrder = []string{
	"budget", "savings", "fraud", "investment",
	"credit", "tax", "emergency", "cash_flow",
}

// -----------------------------------------------------------------------------

func detectIntents(message string) []string {
	lower := strings.ToLower(message)

	var detected []string
	for _, intent := range intentOrder {
		for _, keyword := range intentKeywords[intent] {
			if strings.Contains(lower, keyword) {
				detected = append(detected, intent)
				break
			}
		}
	}
	return detected
}

// -----------------------------------------------------------------------------

// toolsForIntents maps detected intents to the analysis tools the backend
// would run for them.
func toolsForIntents(intents []string) []string {
	var tools []string
	for _, intent := range intents {
		switch intent {
		case "budget":
			tools = append(tools, "budget_analyzer")
		case "savings":
			tools = append(tools, "savings_calculator")
		case "fraud":
			tools = append(tools, "fraud_risk_scorer")
		case "investment":
			tools = append(tools, "portfolio_analyzer")
		case "credit":
			tools = append(tools, "credit_advisor")
		}
	}
	return tools
}

// -----------------------------------------------------------------------------

func toolInsights(tools []string) json.RawMessage {
	insights := make(map[string]interface{}, len(tools))
	for _, tool := range tools {
		insights[tool] = map[string]interface{}{"status": "completed"}
	}
	raw, _ := json.Marshal(insights)
	return raw
}

// -----------------------------------------------------------------------------
// Reply Composition
// -----------------------------------------------------------------------------

func composeReply(req models.MChatRequest, intents []string) string {
	subject := "your finances"
	if len(intents) > 0 {
		subject = strings.ReplaceAll(intents[0], "_", " ")
	}

	reply := fmt.Sprintf("Here's what I can tell you about %s.", subject)
	if snap := req.Context.FinancialSummary; snap != nil {
		reply += fmt.Sprintf(
			" Your monthly income is %.0f against expenses of %.0f, and your net worth stands at %.0f.",
			snap.MonthlyIncome, snap.MonthlyExpenses, snap.NetWorth,
		)
	}
	reply += " Let me know if you'd like a deeper breakdown."
	return reply
}

// -----------------------------------------------------------------------------
// Stream Encoding
// -----------------------------------------------------------------------------

func encodeStreamLine(content string) (string, error) {
	line, err := json.Marshal(models.MStreamLine{Content: content})
	if err != nil {
		return "", err
	}
	return string(line), nil
}

// -----------------------------------------------------------------------------

func wrapToolUsage(usage models.MToolUsage) string {
	wrapped, err := stream.WrapToolUsage(usage)
	if err != nil {
		return ""
	}
	return wrapped
}
