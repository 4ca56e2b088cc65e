// Package money holds decimal helpers for summing and rounding amounts.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Total accumulates float amounts without binary drift.
type Total struct {
	sum decimal.Decimal
}

// Add adds v to the total.
func (t *Total) Add(v float64) {
	t.sum = t.sum.Add(decimal.NewFromFloat(v))
}

// AddAbs adds |v| to the total.
func (t *Total) AddAbs(v float64) {
	t.sum = t.sum.Add(decimal.NewFromFloat(v).Abs())
}

// Float64 returns the total as a float64.
func (t Total) Float64() float64 {
	f, _ := t.sum.Float64()
	return f
}

// IsPositive reports whether the total is greater than zero.
func (t Total) IsPositive() bool {
	return t.sum.IsPositive()
}

// Round rounds v half-to-even at the given number of decimal places.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(places).Float64()
	return f
}

// RoundToStep rounds v half-to-even to the nearest multiple of step.
// A non-positive step returns v unchanged.
func RoundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	s := decimal.NewFromFloat(step)
	f, _ := decimal.NewFromFloat(v).Div(s).RoundBank(0).Mul(s).Float64()
	return f
}

// Format renders an amount with two decimals and thousands separators,
// prefixed by symbol.
func Format(symbol string, v float64) string {
	return symbol + printer.Sprintf("%.2f", v)
}

// FormatWhole renders an amount without decimals, e.g. for contributions.
func FormatWhole(symbol string, v float64) string {
	return symbol + printer.Sprintf("%.0f", v)
}
