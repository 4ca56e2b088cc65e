package investment

import (
	"fmt"
	"math"
	"strings"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/money"
)

// IntentResult is the intent classifier's output.
type IntentResult struct {
	Primary    Intent   `json:"primary_intent"`
	Secondary  []Intent `json:"secondary_intents"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

// HasSecondary reports whether i is among the secondary intents.
func (r IntentResult) HasSecondary(i Intent) bool {
	for _, s := range r.Secondary {
		if s == i {
			return true
		}
	}
	return false
}

var goalIntents = map[domain.GoalKind]Intent{
	domain.GoalRetirement:         IntentWealthGrowth,
	domain.GoalHouse:              IntentWealthGrowth,
	domain.GoalEducation:          IntentWealthGrowth,
	domain.GoalWealthAccumulation: IntentWealthGrowth,
	domain.GoalEmergencyFund:      IntentCapitalProtection,
	domain.GoalPassiveIncome:      IntentPassiveIncome,
}

// IntentClassifier maps a profile to a financial intent.
type IntentClassifier struct {
	t    config.InvestmentThresholds
	conf config.ConfidenceScores
}

// NewIntentClassifier creates an IntentClassifier.
func NewIntentClassifier(th config.Thresholds) *IntentClassifier {
	return &IntentClassifier{t: th.Investment, conf: th.Confidence}
}

// Classify picks the primary intent. A declared goal always wins over the
// profile heuristics.
func (c *IntentClassifier) Classify(p Profile) IntentResult {
	var (
		primary Intent
		parts   []string
	)

	if p.HasGoal() {
		var ok bool
		primary, ok = goalIntents[p.Goal.Kind]
		if !ok {
			primary = IntentWealthGrowth
		}
		parts = append(parts, fmt.Sprintf("Primary goal '%s' suggests %s intent", p.Goal.Kind, primary.Words()))
	} else {
		switch {
		case p.Archetype == ArchetypeGrowthOriented || p.RiskTolerance == domain.RiskHigh:
			primary = IntentWealthGrowth
		case p.Archetype == ArchetypeConservative || p.RiskTolerance == domain.RiskLow:
			primary = IntentCapitalProtection
		case p.MonthlySurplus > c.t.HighSurplus:
			primary = IntentPassiveIncome
		default:
			primary = IntentWealthGrowth
		}
		parts = append(parts, fmt.Sprintf("Inferred %s intent from %s profile", primary.Words(), p.Archetype.DisplayName()))
	}

	secondary := []Intent{}
	if p.MonthlySurplus < c.t.BeginnerSurplus {
		secondary = append(secondary, IntentLearning)
		parts = append(parts, "Low surplus indicates beginner status - learning intent added")
	}

	confidence := c.conf.IntentBase
	if p.HasGoal() {
		confidence += c.conf.IntentGoalBonus
	}
	if p.Archetype != "" && p.Archetype != ArchetypeEmerging {
		confidence += c.conf.IntentProfileBonus
	}
	if len(secondary) > 1 {
		confidence -= c.conf.IntentPenalty
	}
	confidence = math.Min(c.conf.IntentMax, math.Max(c.conf.IntentMin, confidence))

	return IntentResult{
		Primary:    primary,
		Secondary:  secondary,
		Reasoning:  strings.Join(parts, ". "),
		Confidence: money.Round(confidence, 2),
	}
}
