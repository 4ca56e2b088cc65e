package investment

import (
	"fmt"
	"math"
	"sort"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/money"
)

// Risk tolerance sources.
const (
	ToleranceFromPrior   = "prior"
	ToleranceFromSurplus = "derived"
)

// Profile is the investor profile built for one run.
type Profile struct {
	SubjectID           string               `json:"subject_id"`
	Stability           Stability            `json:"income_stability"`
	MonthlyIncome       float64              `json:"monthly_income"`
	MonthlyExpenses     float64              `json:"monthly_expenses"`
	MonthlySurplus      float64              `json:"monthly_surplus"`
	SurplusPercentage   float64              `json:"surplus_percentage"`
	RiskTolerance       domain.RiskTolerance `json:"risk_tolerance"`
	RiskToleranceSource string               `json:"risk_tolerance_source"`
	Archetype           Archetype            `json:"archetype"`
	Goal                *domain.DeclaredGoal `json:"goal,omitempty"`
	EmergencyFundMonths float64              `json:"emergency_fund_months"`
	ExpenseVolatility   float64              `json:"expense_volatility"`
	IncomeMonths        int                  `json:"income_months"`
	ExpenseMonths       int                  `json:"expense_months"`
	Confidence          float64              `json:"confidence"`
}

// HasGoal reports whether the subject declared a goal.
func (p Profile) HasGoal() bool {
	return p.Goal != nil && p.Goal.Kind != ""
}

// Profiler builds investor profiles from a long transaction history.
type Profiler struct {
	t          config.InvestmentThresholds
	confidence float64
}

// NewProfiler creates a Profiler.
func NewProfiler(th config.Thresholds) *Profiler {
	return &Profiler{t: th.Investment, confidence: th.Confidence.Profiler}
}

// Build computes the profile. prior may be nil.
func (p *Profiler) Build(subjectID string, txs []domain.TransactionRecord, goal *domain.DeclaredGoal, prior *domain.RiskProfile) Profile {
	incomeByMonth, expenseByMonth := monthlySeries(txs)

	income := mean(incomeByMonth)
	expenses := mean(expenseByMonth)
	surplus := income - expenses

	prof := Profile{
		SubjectID:           subjectID,
		MonthlyIncome:       income,
		MonthlyExpenses:     expenses,
		MonthlySurplus:      surplus,
		Goal:                goal,
		EmergencyFundMonths: p.t.AssumedEmergencyFundMonths,
		ExpenseVolatility:   coefficientOfVariation(expenseByMonth),
		IncomeMonths:        len(incomeByMonth),
		ExpenseMonths:       len(expenseByMonth),
		Confidence:          p.confidence,
	}
	if income > 0 {
		prof.SurplusPercentage = money.Round(surplus/income*100, 2)
	}

	prof.Stability = p.stability(incomeByMonth)

	switch {
	case prior != nil && prior.Tolerance != "":
		prof.RiskTolerance = prior.Tolerance
		prof.RiskToleranceSource = ToleranceFromPrior
	case surplus > income*p.t.HighRiskSurplusRatio:
		prof.RiskTolerance = domain.RiskHigh
		prof.RiskToleranceSource = ToleranceFromSurplus
	case surplus < income*p.t.LowRiskSurplusRatio:
		prof.RiskTolerance = domain.RiskLow
		prof.RiskToleranceSource = ToleranceFromSurplus
	default:
		prof.RiskTolerance = domain.RiskMedium
		prof.RiskToleranceSource = ToleranceFromSurplus
	}
	if prior != nil && prior.EmergencyFundMonths != nil {
		prof.EmergencyFundMonths = *prior.EmergencyFundMonths
	}

	prof.Archetype = classifyArchetype(prof.Stability, surplus, prof.RiskTolerance)
	return prof
}

func (p *Profiler) stability(incomeByMonth []float64) Stability {
	if len(incomeByMonth) < 2 {
		return StabilityUnknown
	}
	cv := coefficientOfVariation(incomeByMonth)
	switch {
	case cv < p.t.VeryStableCV:
		return StabilityVeryStable
	case cv < p.t.StableCV:
		return StabilityStable
	case cv < p.t.ModerateCV:
		return StabilityModerate
	default:
		return StabilityVolatile
	}
}

// classifyArchetype applies the persona decision table.
func classifyArchetype(s Stability, surplus float64, tol domain.RiskTolerance) Archetype {
	switch {
	case s.IsStable() && surplus > 0:
		switch tol {
		case domain.RiskHigh:
			return ArchetypeGrowthOriented
		case domain.RiskLow:
			return ArchetypeConservative
		default:
			return ArchetypeBalanced
		}
	case s == StabilityVolatile:
		return ArchetypeCautious
	case surplus <= 0:
		return ArchetypeRebuilding
	default:
		return ArchetypeEmerging
	}
}

// monthlySeries groups positive income and absolute expenses by calendar
// month and returns the populated months' totals in month order.
func monthlySeries(txs []domain.TransactionRecord) (income, expenses []float64) {
	inc := make(map[string]*money.Total)
	exp := make(map[string]*money.Total)
	for _, tx := range txs {
		key := fmt.Sprintf("%04d-%02d", tx.Date.Year, int(tx.Date.Month))
		switch {
		case tx.IsInflow():
			add(inc, key, tx.Amount)
		case tx.IsOutflow():
			add(exp, key, math.Abs(tx.Amount))
		}
	}
	return sortedValues(inc), sortedValues(exp)
}

func add(m map[string]*money.Total, key string, v float64) {
	t, ok := m[key]
	if !ok {
		t = &money.Total{}
		m[key] = t
	}
	t.Add(v)
}

func sortedValues(m map[string]*money.Total) []float64 {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = m[k].Float64()
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// coefficientOfVariation is population sigma over mean; 0 for fewer than
// two values or a non-positive mean.
func coefficientOfVariation(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	if m <= 0 {
		return 0
	}
	var variance float64
	for _, x := range xs {
		variance += (x - m) * (x - m)
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance) / m
}
