package investment

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

func day(year int, month, d int) civil.Date {
	return civil.Date{Year: year, Month: time.Month(month), Day: d}
}

func income(date civil.Date, amount float64) domain.TransactionRecord {
	return domain.TransactionRecord{SubjectID: "user-1", Date: date, Type: domain.TxIncome, Amount: amount, Category: "Salary"}
}

func expense(date civil.Date, amount float64, category string) domain.TransactionRecord {
	return domain.TransactionRecord{SubjectID: "user-1", Date: date, Type: domain.TxExpense, Amount: -amount, Category: category}
}

// steadyHistory has three months of 50000 income and 30000 expenses.
func steadyHistory() []domain.TransactionRecord {
	var txs []domain.TransactionRecord
	for m := 1; m <= 3; m++ {
		txs = append(txs,
			income(day(2025, m, 1), 50000),
			expense(day(2025, m, 2), 20000, "Rent"),
			expense(day(2025, m, 9), 10000, "Groceries"),
		)
	}
	return txs
}

func TestProfiler_SteadyIncome(t *testing.T) {
	p := NewProfiler(config.DefaultThresholds()).Build("user-1", steadyHistory(), nil, nil)

	assert.Equal(t, 50000.0, p.MonthlyIncome)
	assert.Equal(t, 30000.0, p.MonthlyExpenses)
	assert.Equal(t, 20000.0, p.MonthlySurplus)
	assert.Equal(t, 40.0, p.SurplusPercentage)
	assert.Equal(t, StabilityVeryStable, p.Stability)
	assert.Equal(t, domain.RiskHigh, p.RiskTolerance)
	assert.Equal(t, ToleranceFromSurplus, p.RiskToleranceSource)
	assert.Equal(t, ArchetypeGrowthOriented, p.Archetype)
	assert.Equal(t, 3.0, p.EmergencyFundMonths)
	assert.Equal(t, 3, p.IncomeMonths)
	assert.Equal(t, 0.85, p.Confidence)
}

func TestProfiler_Stability(t *testing.T) {
	tests := []struct {
		name     string
		incomes  []float64
		expected Stability
	}{
		{"single month", []float64{50000}, StabilityUnknown},
		{"flat", []float64{50000, 50000}, StabilityVeryStable},
		{"small swing", []float64{45000, 55000}, StabilityStable},
		{"moderate swing", []float64{40000, 60000}, StabilityModerate},
		{"large swing", []float64{10000, 50000}, StabilityVolatile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var txs []domain.TransactionRecord
			for i, amt := range tt.incomes {
				txs = append(txs, income(day(2025, i+1, 1), amt))
			}
			p := NewProfiler(config.DefaultThresholds()).Build("user-1", txs, nil, nil)
			assert.Equal(t, tt.expected, p.Stability)
		})
	}
}

func TestProfiler_Archetypes(t *testing.T) {
	tests := []struct {
		name      string
		stability Stability
		surplus   float64
		tol       domain.RiskTolerance
		expected  Archetype
	}{
		{"volatile wins", StabilityVolatile, 10000, domain.RiskHigh, ArchetypeCautious},
		{"no surplus", StabilityStable, 0, domain.RiskMedium, ArchetypeRebuilding},
		{"stable high", StabilityStable, 1000, domain.RiskHigh, ArchetypeGrowthOriented},
		{"stable low", StabilityVeryStable, 1000, domain.RiskLow, ArchetypeConservative},
		{"stable medium", StabilityStable, 1000, domain.RiskMedium, ArchetypeBalanced},
		{"unknown with surplus", StabilityUnknown, 1000, domain.RiskMedium, ArchetypeEmerging},
		{"moderate with surplus", StabilityModerate, 1000, domain.RiskHigh, ArchetypeEmerging},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, classifyArchetype(tt.stability, tt.surplus, tt.tol))
		})
	}
}

func TestProfiler_PriorRiskProfileWins(t *testing.T) {
	months := 8.0
	prior := &domain.RiskProfile{Tolerance: domain.RiskLow, EmergencyFundMonths: &months}

	p := NewProfiler(config.DefaultThresholds()).Build("user-1", steadyHistory(), nil, prior)

	assert.Equal(t, domain.RiskLow, p.RiskTolerance)
	assert.Equal(t, ToleranceFromPrior, p.RiskToleranceSource)
	assert.Equal(t, 8.0, p.EmergencyFundMonths)
	assert.Equal(t, ArchetypeConservative, p.Archetype)
}

func TestProfiler_NoIncome(t *testing.T) {
	txs := []domain.TransactionRecord{expense(day(2025, 1, 5), 4000, "Rent")}

	p := NewProfiler(config.DefaultThresholds()).Build("user-1", txs, nil, nil)

	assert.Equal(t, 0.0, p.SurplusPercentage)
	assert.Equal(t, -4000.0, p.MonthlySurplus)
	assert.Equal(t, ArchetypeRebuilding, p.Archetype)
	assert.Equal(t, StabilityUnknown, p.Stability)
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Equal(t, 0.0, coefficientOfVariation(nil))
	assert.Equal(t, 0.0, coefficientOfVariation([]float64{100}))
	assert.Equal(t, 0.0, coefficientOfVariation([]float64{-10, 10}))
	assert.InDelta(t, 0.5, coefficientOfVariation([]float64{10, 30}), 1e-9)
}
