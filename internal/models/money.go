package models

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatINR renders a decimal amount as rupees for user-facing
// messages and dashboard presentation. This is the only place amounts
// are rounded; everything upstream computes at full precision.
func FormatINR(amount decimal.Decimal) string {
	v, _ := amount.Round(2).Float64()
	return inrPrinter.Sprintf("₹%.2f", v)
}
