package investment

import (
	"context"
	"strings"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// Equity strategies.
const (
	EquityGrowthFocused     = "growth_focused"
	EquityDiversified       = "diversified"
	EquityConservativeIndex = "conservative_index"
)

const equityNote = "All equity investments carry market risk. Past performance does not guarantee future results. Consider index funds for diversification."

var equityPlaybook = map[string]playbook{
	EquityGrowthFocused: {
		band:       "60-70%",
		allocation: "Consider allocating 60-70% of investment surplus to equities",
		approach:   "Growth-oriented approach with focus on long-term wealth accumulation",
		focus: []string{
			"Broad-market index funds for core holdings",
			"Sector diversification across multiple industries",
			"Systematic Investment Plan (SIP) approach",
		},
		points: []string{
			"Index funds provide broad market exposure with lower risk than individual stocks",
			"Dollar-cost averaging (SIP) helps reduce impact of market volatility",
			"Long-term perspective is essential for equity investments",
		},
	},
	EquityDiversified: {
		band:       "40-50%",
		allocation: "Consider allocating 40-50% of investment surplus to equities",
		approach:   "Balanced approach with focus on steady growth and diversification",
		focus: []string{
			"Balanced index fund portfolio",
			"Mix of large-cap and mid-cap exposure",
			"Regular SIP for disciplined investing",
		},
		points: []string{
			"Diversification across market caps helps balance risk and return",
			"Index funds eliminate need for stock picking while providing market returns",
			"Regular investing discipline is key to long-term success",
		},
	},
	EquityConservativeIndex: {
		band:       "20-30%",
		allocation: "Consider allocating 20-30% of investment surplus to equities",
		approach:   "Conservative equity exposure for capital growth with lower volatility",
		focus: []string{
			"Large-cap index funds for stability",
			"Blue-chip focused funds (general category guidance)",
			"Low-volatility equity exposure",
		},
		points: []string{
			"Large-cap stocks historically show lower volatility than small-cap",
			"Index funds provide instant diversification",
			"Conservative equity allocation can help preserve capital while earning growth",
		},
	},
}

// EquitySpecialist recommends an equity strategy from fixed rules.
type EquitySpecialist struct {
	spec config.SpecialistThresholds
	conf config.ConfidenceScores
}

var _ Specialist = (*EquitySpecialist)(nil)

// NewEquitySpecialist creates an EquitySpecialist.
func NewEquitySpecialist(th config.Thresholds) *EquitySpecialist {
	return &EquitySpecialist{spec: th.Specialists, conf: th.Confidence}
}

// Kind implements Specialist.
func (e *EquitySpecialist) Kind() SpecialistKind { return SpecialistEquity }

// Advise implements Specialist.
func (e *EquitySpecialist) Advise(_ context.Context, in Input) (Advice, error) {
	strategy := EquityStrategyFor(in.Routing, in.Profile.RiskTolerance)
	a := equityPlaybook[strategy].advice(SpecialistEquity, strategy)

	a.Confidence = e.conf.EquityLow
	if in.Profile.MonthlySurplus > e.spec.EquityConfidenceSurplus {
		a.Confidence = e.conf.EquityHigh
	}
	a.RiskLevel = strings.ToLower(string(in.Profile.RiskTolerance))
	a.EducationalNote = equityNote
	a.Source = SourceRules
	return a, nil
}

// EquityStrategyFor picks the equity strategy for the routing and tolerance.
func EquityStrategyFor(r Routing, tol domain.RiskTolerance) string {
	switch {
	case r.Selected(PathAggressive) || tol == domain.RiskHigh:
		return EquityGrowthFocused
	case r.Selected(PathBalanced) || tol == domain.RiskMedium:
		return EquityDiversified
	default:
		return EquityConservativeIndex
	}
}
