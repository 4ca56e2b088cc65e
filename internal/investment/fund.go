package investment

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/money"
)

// Fund strategies.
const (
	FundBeginnerSIP  = "beginner_sip"
	FundConservative = "conservative_funds"
	FundGrowth       = "growth_funds"
	FundBalanced     = "balanced_funds"
)

const (
	fundNote           = "SIP (Systematic Investment Plan) helps in disciplined investing and reduces impact of market timing. All investments carry risk."
	noSurplusReasoning = "No surplus available for SIP investment"
)

var fundPlaybook = map[string]playbook{
	FundBeginnerSIP: {
		band:       "30-40%",
		allocation: "Start with 30-40% of monthly surplus in SIPs",
		approach:   "Beginner-friendly approach with focus on learning and steady growth",
		focus: []string{
			"Large-cap index funds or ETFs",
			"Balanced funds (equity + debt mix)",
			"Conservative hybrid funds",
		},
		points: []string{
			"SIP allows investing small amounts regularly",
			"Index funds are simple and cost-effective",
			"Balanced funds provide automatic diversification",
		},
	},
	FundConservative: {
		band:       "50-60%",
		allocation: "Allocate 50-60% of surplus to conservative funds",
		approach:   "Conservative approach focusing on capital preservation with growth",
		focus: []string{
			"Large-cap index ETFs",
			"Debt funds for stability",
			"Balanced funds with debt tilt",
		},
		points: []string{
			"Large-cap funds offer stability with market returns",
			"Debt funds provide income generation with lower risk",
			"Balanced allocation helps manage volatility",
		},
	},
	FundGrowth: {
		band:       "60-70%",
		allocation: "Allocate 60-70% of surplus to growth-oriented funds",
		approach:   "Growth-oriented approach with focus on long-term wealth accumulation",
		focus: []string{
			"Broad-market index ETFs",
			"Mid-cap and small-cap index funds",
			"Sector-specific ETFs (with caution)",
		},
		points: []string{
			"Index ETFs provide broad market exposure at low cost",
			"Mid-cap and small-cap funds offer higher growth potential with higher risk",
			"Diversification across market caps balances risk and return",
		},
	},
	FundBalanced: {
		band:       "50-60%",
		allocation: "Allocate 50-60% of surplus to a diversified fund mix",
		approach:   "Balanced approach with diversified fund portfolio",
		focus: []string{
			"Large-cap and mid-cap index funds",
			"Balanced funds",
			"Multi-cap index ETFs",
		},
		points: []string{
			"Diversification across market caps and asset classes reduces risk",
			"Balanced funds automatically adjust allocation",
			"Index funds eliminate fund manager risk and reduce costs",
		},
	},
}

// FundSpecialist recommends fund categories and a monthly SIP amount.
type FundSpecialist struct {
	spec config.SpecialistThresholds
	conf config.ConfidenceScores
}

var _ Specialist = (*FundSpecialist)(nil)

// NewFundSpecialist creates a FundSpecialist.
func NewFundSpecialist(th config.Thresholds) *FundSpecialist {
	return &FundSpecialist{spec: th.Specialists, conf: th.Confidence}
}

// Kind implements Specialist.
func (f *FundSpecialist) Kind() SpecialistKind { return SpecialistFund }

// Advise implements Specialist.
func (f *FundSpecialist) Advise(_ context.Context, in Input) (Advice, error) {
	strategy := FundStrategyFor(in.Routing, in.Profile.RiskTolerance)
	a := fundPlaybook[strategy].advice(SpecialistFund, strategy)

	a.Confidence = f.conf.FundLow
	if in.Profile.MonthlySurplus > f.spec.FundConfidenceSurplus {
		a.Confidence = f.conf.FundHigh
	}
	a.RiskLevel = strings.ToLower(string(in.Profile.RiskTolerance))
	a.EducationalNote = fundNote
	c := f.Contribution(in.Profile.MonthlySurplus, in.Profile.RiskTolerance)
	a.Contribution = &c
	a.Source = SourceRules
	return a, nil
}

// Contribution computes the monthly SIP: surplus times a tolerance-based
// rate, rounded half-to-even to the contribution step.
func (f *FundSpecialist) Contribution(surplus float64, tol domain.RiskTolerance) Contribution {
	if surplus <= 0 {
		return Contribution{Frequency: "monthly", Reasoning: noSurplusReasoning}
	}
	rate := f.spec.ContributionRateDefault
	switch tol {
	case domain.RiskHigh:
		rate = f.spec.ContributionRateHigh
	case domain.RiskLow:
		rate = f.spec.ContributionRateLow
	}
	return Contribution{
		Amount:    money.RoundToStep(surplus*rate, f.spec.ContributionStep),
		Frequency: "monthly",
		Reasoning: fmt.Sprintf("Recommended SIP based on %s risk tolerance and available surplus", tol),
	}
}

// FundStrategyFor picks the fund strategy for the routing and tolerance.
func FundStrategyFor(r Routing, tol domain.RiskTolerance) string {
	switch {
	case r.Selected(PathBeginner):
		return FundBeginnerSIP
	case tol == domain.RiskLow:
		return FundConservative
	case tol == domain.RiskHigh:
		return FundGrowth
	default:
		return FundBalanced
	}
}
