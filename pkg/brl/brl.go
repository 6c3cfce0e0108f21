// Package brl formats monetary amounts in Brazilian reais for human-facing
// text such as prompts and notification emails.
package brl

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// Format renders v as "R$ 1.234.567,89".
func Format(v float64) string {
	return printer.Sprintf("R$ %.2f", v)
}

// FormatPercent renders a fraction as "60,00%".
func FormatPercent(fraction float64) string {
	return printer.Sprintf("%.2f%%", fraction*100)
}
