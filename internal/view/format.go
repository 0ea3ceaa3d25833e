package view

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer = message.NewPrinter(language.English)
	titler  = cases.Title(language.English)
)

// Money formats v as US dollars with thousands separators.
func Money(v float64) string {
	if v < 0 {
		return "-" + printer.Sprintf("$%.2f", -v)
	}
	return printer.Sprintf("$%.2f", v)
}

// Number formats v with one decimal and thousands separators.
func Number(v float64) string {
	return printer.Sprintf("%.1f", v)
}

// Percent formats an already scaled percentage.
func Percent(v float64) string {
	return printer.Sprintf("%.1f%%", v)
}

// Title turns identifiers such as "feature_store" into "Feature Store".
func Title(s string) string {
	return titler.String(strings.ReplaceAll(s, "_", " "))
}
