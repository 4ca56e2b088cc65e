// Package rules holds the stateless spending predicates. Every guard
// returns a safe default instead of dividing by zero.
package rules

import (
	"math"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/signals"
)

// Finding is one triggered rule.
//
// Magnitude depends on Kind: share of income in percent for category
// overspend, growth in percent for spending increase, predicted period spend
// for predictive overshoot, suggested amount for savings opportunity.
type Finding struct {
	Kind      domain.FindingKind `json:"kind"`
	Magnitude float64            `json:"magnitude"`
	Priority  domain.Priority    `json:"priority"`
	Category  string             `json:"category,omitempty"`
	Spend     float64            `json:"spend,omitempty"`
}

// Evaluator applies the spending thresholds.
type Evaluator struct {
	t config.SpendingThresholds
}

// NewEvaluator creates an Evaluator for the given thresholds.
func NewEvaluator(t config.SpendingThresholds) *Evaluator {
	return &Evaluator{t: t}
}

// CategoryOverspend reports whether spend exceeds the overspend share of income.
func (e *Evaluator) CategoryOverspend(spend, income float64) bool {
	if income <= 0 {
		return false
	}
	return spend/income > e.t.CategoryOverspendRatio
}

// CategoryPriority grades a category's share of income.
func (e *Evaluator) CategoryPriority(spend, income float64) domain.Priority {
	if income <= 0 {
		return domain.PriorityLow
	}
	ratio := spend / income
	switch {
	case ratio > e.t.CategoryHighRatio:
		return domain.PriorityHigh
	case ratio > e.t.CategoryOverspendRatio:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// SpendingIncrease reports whether current expenses grew past the increase ratio.
func (e *Evaluator) SpendingIncrease(current, prior float64) bool {
	if prior <= 0 {
		return false
	}
	return (current-prior)/prior > e.t.SpendingIncreaseRatio
}

// PredictedSpend extrapolates current expenses linearly to the end of the period.
func PredictedSpend(current float64, elapsedDays, daysInPeriod int) float64 {
	if elapsedDays <= 0 {
		return current
	}
	daily := current / float64(elapsedDays)
	return current + daily*float64(daysInPeriod-elapsedDays)
}

// PredictiveOvershoot reports whether the extrapolated spend exceeds income.
func (e *Evaluator) PredictiveOvershoot(current float64, elapsedDays, daysInPeriod int, income float64) bool {
	if elapsedDays <= 0 || income <= 0 {
		return false
	}
	return PredictedSpend(current, elapsedDays, daysInPeriod) > income*e.t.OvershootIncomeMultiple
}

// SavingsSuggestion returns how much the subject should set aside this period.
func (e *Evaluator) SavingsSuggestion(current, income float64) float64 {
	target := e.t.SavingsTargetRate * income
	available := income - current
	if available < target {
		return math.Max(0, target-available)
	}
	return target
}

// Evaluate runs every rule against the snapshot.
func (e *Evaluator) Evaluate(s signals.Snapshot) []Finding {
	var findings []Finding
	income := s.EstimatedMonthlyIncome

	if income > 0 {
		for _, c := range s.Categories {
			if !e.CategoryOverspend(c.Amount, income) {
				continue
			}
			findings = append(findings, Finding{
				Kind:      domain.FindingCategoryOverspend,
				Magnitude: c.Amount / income * 100,
				Priority:  e.CategoryPriority(c.Amount, income),
				Category:  c.Category,
				Spend:     c.Amount,
			})
		}
	}

	if e.SpendingIncrease(s.CurrentExpenses, s.PriorExpenses) {
		findings = append(findings, Finding{
			Kind:      domain.FindingSpendingIncrease,
			Magnitude: (s.CurrentExpenses - s.PriorExpenses) / s.PriorExpenses * 100,
			Priority:  domain.PriorityMedium,
		})
	}

	if e.PredictiveOvershoot(s.CurrentExpenses, s.ElapsedDays, s.DaysInPeriod, income) {
		findings = append(findings, Finding{
			Kind:      domain.FindingPredictiveOvershoot,
			Magnitude: PredictedSpend(s.CurrentExpenses, s.ElapsedDays, s.DaysInPeriod),
			Priority:  domain.PriorityHigh,
		})
	}

	if income > 0 {
		if suggested := e.SavingsSuggestion(s.CurrentExpenses, income); suggested > 0 {
			findings = append(findings, Finding{
				Kind:      domain.FindingSavingsOpportunity,
				Magnitude: suggested,
				Priority:  domain.PriorityLow,
			})
		}
	}

	return findings
}

// Find returns the first finding of the given kind.
func Find(findings []Finding, kind domain.FindingKind) (Finding, bool) {
	for _, f := range findings {
		if f.Kind == kind {
			return f, true
		}
	}
	return Finding{}, false
}
