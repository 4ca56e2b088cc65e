package signals

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func income(d civil.Date, amount float64) domain.TransactionRecord {
	return domain.TransactionRecord{Date: d, Type: domain.TxIncome, Amount: amount}
}

func expense(d civil.Date, amount float64, category string) domain.TransactionRecord {
	return domain.TransactionRecord{Date: d, Type: domain.TxExpense, Amount: -amount, Category: category}
}

func TestAggregate_PeriodsAndTotals(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	txs := []domain.TransactionRecord{
		expense(date(2025, 3, 10), 200, "Dining"),
		income(date(2025, 3, 1), 50000),
		expense(date(2025, 3, 2), 15000, "Rent"),
		expense(date(2025, 3, 5), 300, ""),
		expense(date(2025, 3, 3), 100, "Dining"),
		{Date: date(2025, 3, 4), Type: domain.TxTransfer, Amount: -9999},
		income(date(2025, 2, 1), 48000),
		expense(date(2025, 2, 20), 20000, "Rent"),
		expense(date(2025, 1, 20), 777, "Old"),
	}

	snap := Aggregate("user-1", txs, now, 30)

	assert.Equal(t, date(2025, 3, 1), snap.PeriodStart)
	assert.Equal(t, date(2025, 3, 31), snap.PeriodEnd)
	assert.Equal(t, date(2025, 2, 1), snap.PriorPeriodStart)
	assert.Equal(t, 50000.0, snap.CurrentIncome)
	assert.Equal(t, 15600.0, snap.CurrentExpenses)
	assert.Equal(t, 48000.0, snap.PriorIncome)
	assert.Equal(t, 20000.0, snap.PriorExpenses)
	assert.Equal(t, 50000.0, snap.EstimatedMonthlyIncome)
	assert.Equal(t, IncomeCurrentPeriod, snap.IncomeSource)
	assert.Equal(t, 15, snap.ElapsedDays)
	assert.Equal(t, 31, snap.DaysInPeriod)
	assert.Equal(t, 6, snap.CurrentCount)
	assert.Equal(t, 2, snap.PriorCount)

	// order of first appearance by date, transfers excluded
	require.Len(t, snap.Categories, 3)
	assert.Equal(t, CategorySpend{Category: "Rent", Amount: 15000}, snap.Categories[0])
	assert.Equal(t, CategorySpend{Category: "Dining", Amount: 300}, snap.Categories[1])
	assert.Equal(t, CategorySpend{Category: domain.UncategorizedCategory, Amount: 300}, snap.Categories[2])
}

func TestAggregate_IncomeFallbackChain(t *testing.T) {
	now := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)

	t.Run("prior period", func(t *testing.T) {
		snap := Aggregate("u", []domain.TransactionRecord{
			expense(date(2025, 3, 2), 100, "Dining"),
			income(date(2025, 2, 3), 42000),
		}, now, 30)
		assert.Equal(t, 42000.0, snap.EstimatedMonthlyIncome)
		assert.Equal(t, IncomePriorPeriod, snap.IncomeSource)
	})

	t.Run("extrapolated from lookback window", func(t *testing.T) {
		// income older than the prior period but inside a 60 day window
		snap := Aggregate("u", []domain.TransactionRecord{
			expense(date(2025, 3, 2), 100, "Dining"),
			income(date(2025, 1, 25), 12000),
		}, now, 60)
		assert.Equal(t, IncomeExtrapolated, snap.IncomeSource)
		assert.InDelta(t, 12000.0/60*30, snap.EstimatedMonthlyIncome, 1e-9)
	})

	t.Run("no income anywhere", func(t *testing.T) {
		snap := Aggregate("u", []domain.TransactionRecord{
			expense(date(2025, 3, 2), 100, "Dining"),
		}, now, 30)
		assert.Equal(t, 0.0, snap.EstimatedMonthlyIncome)
		assert.Equal(t, IncomeExtrapolated, snap.IncomeSource)
	})
}

func TestAggregate_DecemberRollover(t *testing.T) {
	now := time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)
	snap := Aggregate("u", nil, now, 30)

	assert.Equal(t, 31, snap.DaysInPeriod)
	assert.Equal(t, 31, snap.ElapsedDays)
	assert.Equal(t, date(2024, 11, 1), snap.PriorPeriodStart)
	assert.False(t, snap.HasCurrentActivity())
}

func TestAggregate_JanuaryPriorPeriod(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	snap := Aggregate("u", []domain.TransactionRecord{
		expense(date(2024, 12, 15), 500, "Gifts"),
	}, now, 30)

	assert.Equal(t, date(2024, 12, 1), snap.PriorPeriodStart)
	assert.Equal(t, 1, snap.ElapsedDays)
	assert.Equal(t, 500.0, snap.PriorExpenses)
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 29, DaysInMonth(date(2024, 2, 10)))
	assert.Equal(t, 28, DaysInMonth(date(2025, 2, 10)))
	assert.Equal(t, 30, DaysInMonth(date(2025, 4, 30)))
	assert.Equal(t, 31, DaysInMonth(date(2025, 12, 1)))
}

func TestObservationStart(t *testing.T) {
	now := time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)
	// window start (Mar 1) is after the prior period start (Feb 1)
	assert.Equal(t, date(2025, 2, 1), ObservationStart(now, 30))
	// a 90 day window reaches further back
	assert.Equal(t, date(2024, 12, 31), ObservationStart(now, 90))
}

func TestCategoryAmount(t *testing.T) {
	snap := Snapshot{Categories: []CategorySpend{{Category: "Rent", Amount: 10}}}
	v, ok := snap.CategoryAmount("Rent")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)
	_, ok = snap.CategoryAmount("Travel")
	assert.False(t, ok)
}
