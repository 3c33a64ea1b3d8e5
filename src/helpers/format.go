package helpers

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// -----------------------------------------------------------------------------
// Currency Formatting
// -----------------------------------------------------------------------------

var currencyPrinter = message.NewPrinter(language.English)

// FormatCurrency renders an amount with the locale's digit grouping,
// e.g. 1250000 -> "$1,250,000". Fractions are dropped; the synthesized
// replies speak in whole currency units.
func FormatCurrency(amount float64) string {
	return currencyPrinter.Sprintf("$%d", int64(amount))
}
