package stream

import (
	"fmt"
	"strings"

	"finlink/src/helpers"
	"finlink/src/models"
)

// -----------------------------------------------------------------------------
// Fallback Synthesis
// -----------------------------------------------------------------------------

// Keyword categories, checked in order; the first match wins.
var fallbackCategories = []struct {
	name     string
	keywords []string
}{
	{"savings", []string{"save", "saving", "savings"}},
	{"expenses", []string{"spend", "spending", "expense", "expenses", "cost"}},
	{"investing", []string{"invest", "investing", "portfolio", "stock", "mutual", "returns"}},
	{"networth", []string{"net worth", "networth", "worth", "wealth"}},
	{"goals", []string{"goal", "goals", "target", "plan"}},
	{"budgeting", []string{"budget", "budgeting", "allocat"}},
}

const apologyReply = "I'm sorry, I can't reach the advice service right now and I don't have your financial details on hand, so please try again in a moment."

// -----------------------------------------------------------------------------

// SynthesizeReply deterministically builds a plausible reply from the cached
// snapshot and simple keyword matching, covering for an unreachable backend.
// Without a snapshot it degrades to a single apology sentence.
func SynthesizeReply(message string, snapshot *models.MFinancialSnapshot) string {
	if snapshot == nil {
		return apologyReply
	}

	lower := strings.ToLower(message)
	category := "generic"
	for _, c := range fallbackCategories {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				category = c.name
				break
			}
		}
		if category != "generic" {
			break
		}
	}

	monthlySurplus := snapshot.MonthlyIncome - snapshot.MonthlyExpenses

	switch category {
	case "savings":
		return fmt.Sprintf(
			"You currently set aside about %s per month (income of %s minus expenses of %s), a savings rate of %s%%. A common guideline is to keep at least 20%% of income going into savings, so you're in a good position to automate that amount each month.",
			helpers.FormatCurrency(monthlySurplus),
			helpers.FormatCurrency(snapshot.MonthlyIncome),
			helpers.FormatCurrency(snapshot.MonthlyExpenses),
			snapshot.SavingsRate,
		)
	case "expenses":
		return fmt.Sprintf(
			"Your monthly expenses are around %s against an income of %s across %d recent transactions. Reviewing your three largest recurring charges is usually the fastest way to free up room in the budget.",
			helpers.FormatCurrency(snapshot.MonthlyExpenses),
			helpers.FormatCurrency(snapshot.MonthlyIncome),
			snapshot.TransactionCount,
		)
	case "investing":
		return fmt.Sprintf(
			"You hold %d investments as part of a net worth of %s. With a monthly surplus of about %s, steadily adding to diversified holdings tends to beat trying to time the market.",
			snapshot.InvestmentCount,
			helpers.FormatCurrency(snapshot.NetWorth),
			helpers.FormatCurrency(monthlySurplus),
		)
	case "networth":
		return fmt.Sprintf(
			"Your net worth stands at %s across %d accounts and %d investments. Tracking it monthly alongside your %s%% savings rate gives the clearest picture of long-term progress.",
			helpers.FormatCurrency(snapshot.NetWorth),
			snapshot.AccountCount,
			snapshot.InvestmentCount,
			snapshot.SavingsRate,
		)
	case "goals":
		return fmt.Sprintf(
			"With about %s left over each month, you can fund a medium-term goal of %s in roughly a year. Setting up a dedicated account for it keeps the target visible and the money out of everyday spending.",
			helpers.FormatCurrency(monthlySurplus),
			helpers.FormatCurrency(monthlySurplus*12),
		)
	case "budgeting":
		return fmt.Sprintf(
			"A simple split of your %s income is 50%% needs, 30%% wants and 20%% savings. Right now your expenses run %s, which leaves %s to allocate deliberately.",
			helpers.FormatCurrency(snapshot.MonthlyIncome),
			helpers.FormatCurrency(snapshot.MonthlyExpenses),
			helpers.FormatCurrency(monthlySurplus),
		)
	default:
		return fmt.Sprintf(
			"Here's a quick summary while the advice service is unreachable: net worth %s, monthly income %s, monthly expenses %s, savings rate %s%%. Ask me about savings, spending, investing or budgeting for more detail.",
			helpers.FormatCurrency(snapshot.NetWorth),
			helpers.FormatCurrency(snapshot.MonthlyIncome),
			helpers.FormatCurrency(snapshot.MonthlyExpenses),
			snapshot.SavingsRate,
		)
	}
}
