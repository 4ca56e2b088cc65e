package investment

import (
	"math"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// SafetyChecks are the boolean checks the risk gate evaluates.
type SafetyChecks struct {
	SufficientIncome      bool `json:"sufficient_income"`
	SufficientSurplus     bool `json:"sufficient_surplus"`
	StableIncome          bool `json:"stable_income"`
	UnstableIncome        bool `json:"unstable_income"`
	AdequateEmergencyFund bool `json:"adequate_emergency_fund"`
}

// SafetyRecommendation is one prioritized piece of safety guidance.
type SafetyRecommendation struct {
	Priority       domain.Priority `json:"priority"`
	Recommendation string          `json:"recommendation"`
	Reasoning      string          `json:"reasoning"`
}

// RiskAssessment is the risk gate's output.
type RiskAssessment struct {
	Score           float64                `json:"risk_score"`
	Checks          SafetyChecks           `json:"safety_checks"`
	BlockedPaths    []Path                 `json:"blocked_paths"`
	Override        bool                   `json:"safety_override"`
	Reasons         []string               `json:"override_reasons"`
	Recommendations []SafetyRecommendation `json:"recommendations"`
	Confidence      float64                `json:"confidence"`
}

// OverrideReason returns the first blocking reason, or "".
func (a RiskAssessment) OverrideReason() string {
	if len(a.Reasons) == 0 {
		return ""
	}
	return a.Reasons[0]
}

// Blocked reports whether p was blocked.
func (a RiskAssessment) Blocked(p Path) bool {
	return containsPath(a.BlockedPaths, p)
}

// RiskGate blocks unsafe paths and scores overall risk.
type RiskGate struct {
	t          config.InvestmentThresholds
	w          config.RiskScoreWeights
	confidence float64
}

// NewRiskGate creates a RiskGate.
func NewRiskGate(th config.Thresholds) *RiskGate {
	return &RiskGate{t: th.Investment, w: th.RiskScore, confidence: th.Confidence.Risk}
}

// Assess evaluates the profile against the selected paths. Blocks
// accumulate as an ordered union; every reason is kept.
func (g *RiskGate) Assess(p Profile, r Routing) RiskAssessment {
	checks := SafetyChecks{
		SufficientIncome:      p.MonthlyIncome > p.MonthlyExpenses,
		SufficientSurplus:     p.MonthlySurplus >= g.t.MinimumSurplus,
		StableIncome:          p.Stability.IsStable(),
		UnstableIncome:        p.Stability.IsUnstable(),
		AdequateEmergencyFund: p.EmergencyFundMonths >= g.t.EmergencyFundMonths,
	}

	a := RiskAssessment{
		Checks:       checks,
		BlockedPaths: []Path{},
		Reasons:      []string{},
		Confidence:   g.confidence,
	}
	block := func(reason string, paths ...Path) {
		for _, path := range paths {
			if !containsPath(a.BlockedPaths, path) {
				a.BlockedPaths = append(a.BlockedPaths, path)
			}
		}
		a.Reasons = append(a.Reasons, reason)
	}

	if !checks.SufficientSurplus {
		block("Insufficient monthly surplus for aggressive investment strategies", PathAggressive, PathBalanced)
	}
	if checks.UnstableIncome && r.Selected(PathAggressive) {
		block("Unstable income pattern makes aggressive strategies risky", PathAggressive)
	}
	if !checks.AdequateEmergencyFund && r.Selected(PathAggressive) {
		block("Low emergency fund coverage - aggressive investments not recommended", PathAggressive)
	}
	a.Override = len(a.Reasons) > 0

	a.Score = g.score(p)
	a.Recommendations = g.recommendations(checks)
	return a
}

// score is clamped to [Min, Max], lower is safer.
func (g *RiskGate) score(p Profile) float64 {
	w := g.w
	score := w.Base

	if p.MonthlyIncome > 0 {
		ratio := p.MonthlySurplus / p.MonthlyIncome
		switch {
		case ratio < w.ThinSurplusRatio:
			score += w.ThinSurplusDelta
		case ratio < w.LowSurplusRatio:
			score += w.LowSurplusDelta
		case ratio >= w.HealthySurplusRatio:
			score += w.HealthySurplusDelta
		}
	}

	switch p.Stability {
	case StabilityVeryStable:
		score += w.VeryStableDelta
	case StabilityStable:
		score += w.StableDelta
	case StabilityModerate:
		score += w.ModerateDelta
	case StabilityVolatile:
		score += w.VolatileDelta
	}

	switch months := p.EmergencyFundMonths; {
	case months >= w.FullFundMonths:
		score += w.FullFundDelta
	case months >= w.PartialFundMonths:
		score += w.PartialFundDelta
	case months < w.MinimalFundMonths:
		score += w.MinimalFundDelta
	}

	return math.Max(w.Min, math.Min(w.Max, score))
}

func (g *RiskGate) recommendations(c SafetyChecks) []SafetyRecommendation {
	var recs []SafetyRecommendation
	if !c.SufficientSurplus {
		recs = append(recs, SafetyRecommendation{
			Priority:       domain.PriorityHigh,
			Recommendation: "Build emergency fund first before investing",
			Reasoning:      "Monthly surplus is insufficient for investment strategies",
		})
	}
	if !c.AdequateEmergencyFund {
		recs = append(recs, SafetyRecommendation{
			Priority:       domain.PriorityHigh,
			Recommendation: "Maintain 3-6 months expenses as emergency fund",
			Reasoning:      "Emergency fund provides financial safety net",
		})
	}
	if c.UnstableIncome {
		recs = append(recs, SafetyRecommendation{
			Priority:       domain.PriorityMedium,
			Recommendation: "Consider conservative investment approach due to income volatility",
			Reasoning:      "Unstable income requires more conservative investment strategy",
		})
	}
	if len(recs) == 0 {
		recs = append(recs, SafetyRecommendation{
			Priority:       domain.PriorityLow,
			Recommendation: "Safety checks passed - proceed with recommended investment path",
			Reasoning:      "Financial profile supports investment strategies",
		})
	}
	return recs
}
