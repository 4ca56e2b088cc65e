// Package signals reduces raw transaction history into a per-period
// financial snapshot.
package signals

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/money"
)

// IncomeSource records which tier of the fallback chain produced the
// estimated monthly income.
type IncomeSource string

const (
	IncomeCurrentPeriod IncomeSource = "current_period"
	IncomePriorPeriod   IncomeSource = "prior_period"
	IncomeExtrapolated  IncomeSource = "extrapolated"
)

// CategorySpend is the expense total for one category.
type CategorySpend struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// Snapshot is the financial state of a subject for the current period.
// It is rebuilt on every run.
type Snapshot struct {
	SubjectID        string     `json:"subject_id"`
	AsOf             civil.Date `json:"as_of"`
	PeriodStart      civil.Date `json:"period_start"`
	PeriodEnd        civil.Date `json:"period_end"`
	PriorPeriodStart civil.Date `json:"prior_period_start"`

	CurrentIncome   float64 `json:"current_income"`
	CurrentExpenses float64 `json:"current_expenses"`
	PriorIncome     float64 `json:"prior_income"`
	PriorExpenses   float64 `json:"prior_expenses"`

	EstimatedMonthlyIncome float64      `json:"estimated_monthly_income"`
	IncomeSource           IncomeSource `json:"income_source"`

	// Categories holds unique keys in order of first appearance.
	Categories []CategorySpend `json:"categories"`

	ElapsedDays  int `json:"elapsed_days"`
	DaysInPeriod int `json:"days_in_period"`

	CurrentCount int `json:"current_count"`
	PriorCount   int `json:"prior_count"`
}

// CategoryAmount returns the spend recorded for category.
func (s Snapshot) CategoryAmount(category string) (float64, bool) {
	for _, c := range s.Categories {
		if c.Category == category {
			return c.Amount, true
		}
	}
	return 0, false
}

// HasCurrentActivity reports whether any transaction fell in the current period.
func (s Snapshot) HasCurrentActivity() bool {
	return s.CurrentCount > 0
}

// MonthStart returns the first day of the month containing d.
func MonthStart(d civil.Date) civil.Date {
	return civil.Date{Year: d.Year, Month: d.Month, Day: 1}
}

// NextMonthStart returns the first day of the month after d's month,
// rolling December into January of the next year.
func NextMonthStart(d civil.Date) civil.Date {
	if d.Month == time.December {
		return civil.Date{Year: d.Year + 1, Month: time.January, Day: 1}
	}
	return civil.Date{Year: d.Year, Month: d.Month + 1, Day: 1}
}

// PriorMonthStart returns the first day of the month before d's month.
func PriorMonthStart(d civil.Date) civil.Date {
	if d.Month == time.January {
		return civil.Date{Year: d.Year - 1, Month: time.December, Day: 1}
	}
	return civil.Date{Year: d.Year, Month: d.Month - 1, Day: 1}
}

// DaysInMonth returns the number of days in d's calendar month.
func DaysInMonth(d civil.Date) int {
	return NextMonthStart(d).AddDays(-1).Day
}

// ObservationStart is the earliest date the aggregator needs: the start of
// the prior period or the start of the lookback window, whichever is earlier.
func ObservationStart(now time.Time, lookbackDays int) civil.Date {
	asOf := civil.DateOf(now.UTC())
	prior := PriorMonthStart(asOf)
	window := asOf.AddDays(-lookbackDays)
	if window.Before(prior) {
		return window
	}
	return prior
}

// Aggregate builds the snapshot for subjectID as of now. Transactions may
// arrive in any order. lookbackDays bounds the extrapolation tier of the
// income estimate.
func Aggregate(subjectID string, txs []domain.TransactionRecord, now time.Time, lookbackDays int) Snapshot {
	asOf := civil.DateOf(now.UTC())
	start := MonthStart(asOf)
	next := NextMonthStart(asOf)
	prior := PriorMonthStart(asOf)
	windowStart := asOf.AddDays(-lookbackDays)

	sorted := make([]domain.TransactionRecord, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	var (
		curIncome, curExpense     money.Total
		priorIncome, priorExpense money.Total
		windowIncome              money.Total
		curCount, priorCount      int
	)
	byCategory := make(map[string]*money.Total)
	var order []string

	for _, tx := range sorted {
		if !tx.Date.Before(windowStart) && tx.IsInflow() {
			windowIncome.Add(tx.Amount)
		}

		switch {
		case !tx.Date.Before(start) && tx.Date.Before(next):
			curCount++
			if tx.IsInflow() {
				curIncome.Add(tx.Amount)
			}
			if tx.IsOutflow() {
				curExpense.AddAbs(tx.Amount)
				cat := tx.CategoryOrDefault()
				total, ok := byCategory[cat]
				if !ok {
					total = &money.Total{}
					byCategory[cat] = total
					order = append(order, cat)
				}
				total.AddAbs(tx.Amount)
			}
		case !tx.Date.Before(prior) && tx.Date.Before(start):
			priorCount++
			if tx.IsInflow() {
				priorIncome.Add(tx.Amount)
			}
			if tx.IsOutflow() {
				priorExpense.AddAbs(tx.Amount)
			}
		}
	}

	snap := Snapshot{
		SubjectID:        subjectID,
		AsOf:             asOf,
		PeriodStart:      start,
		PeriodEnd:        next.AddDays(-1),
		PriorPeriodStart: prior,
		CurrentIncome:    curIncome.Float64(),
		CurrentExpenses:  curExpense.Float64(),
		PriorIncome:      priorIncome.Float64(),
		PriorExpenses:    priorExpense.Float64(),
		ElapsedDays:      asOf.DaysSince(start) + 1,
		DaysInPeriod:     DaysInMonth(asOf),
		CurrentCount:     curCount,
		PriorCount:       priorCount,
	}

	switch {
	case curIncome.IsPositive():
		snap.EstimatedMonthlyIncome = snap.CurrentIncome
		snap.IncomeSource = IncomeCurrentPeriod
	case priorIncome.IsPositive():
		snap.EstimatedMonthlyIncome = snap.PriorIncome
		snap.IncomeSource = IncomePriorPeriod
	default:
		snap.IncomeSource = IncomeExtrapolated
		if lookbackDays > 0 {
			snap.EstimatedMonthlyIncome = windowIncome.Float64() / float64(lookbackDays) * 30
		}
	}

	snap.Categories = make([]CategorySpend, 0, len(order))
	for _, cat := range order {
		snap.Categories = append(snap.Categories, CategorySpend{
			Category: cat,
			Amount:   byCategory[cat].Float64(),
		})
	}

	return snap
}
