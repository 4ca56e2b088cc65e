package investment

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/fiscal-pilot/internal/llm"
)

// Invoker calls an external model for one stage and returns its decoded
// JSON payload.
type Invoker interface {
	Invoke(ctx context.Context, stage string, input any) (map[string]any, error)
}

// ModelRequest is the fixed-shape record sent to the model for a
// specialist stage.
type ModelRequest struct {
	Stage             SpecialistKind `json:"stage"`
	AllowedStrategies []string       `json:"allowed_strategies"`
	MonthlyIncome     float64        `json:"monthly_income"`
	MonthlyExpenses   float64        `json:"monthly_expenses"`
	MonthlySurplus    float64        `json:"monthly_surplus"`
	IncomeStability   Stability      `json:"income_stability"`
	RiskTolerance     string         `json:"risk_tolerance"`
	Archetype         Archetype      `json:"archetype"`
	PrimaryIntent     Intent         `json:"primary_intent"`
	SelectedPaths     []Path         `json:"selected_paths"`
}

// ModelSpecialist delegates strategy selection to an Invoker and
// validates the reply against the closed strategy set for its kind.
type ModelSpecialist struct {
	kind    SpecialistKind
	invoker Invoker
	// fund fills the contribution when the model omits it.
	fund *FundSpecialist
}

var _ Specialist = (*ModelSpecialist)(nil)

// NewModelSpecialist creates a model-backed specialist of the given kind.
// fund may be nil; it is only used for the fund contribution default.
func NewModelSpecialist(kind SpecialistKind, invoker Invoker, fund *FundSpecialist) *ModelSpecialist {
	return &ModelSpecialist{kind: kind, invoker: invoker, fund: fund}
}

// Kind implements Specialist.
func (m *ModelSpecialist) Kind() SpecialistKind { return m.kind }

// Advise implements Specialist. Any invocation or validation failure is
// returned as an error; the caller decides on a fallback.
func (m *ModelSpecialist) Advise(ctx context.Context, in Input) (Advice, error) {
	req := ModelRequest{
		Stage:             m.kind,
		AllowedStrategies: strategyOrder(m.kind),
		MonthlyIncome:     in.Profile.MonthlyIncome,
		MonthlyExpenses:   in.Profile.MonthlyExpenses,
		MonthlySurplus:    in.Profile.MonthlySurplus,
		IncomeStability:   in.Profile.Stability,
		RiskTolerance:     string(in.Profile.RiskTolerance),
		Archetype:         in.Profile.Archetype,
		PrimaryIntent:     in.Intent.Primary,
		SelectedPaths:     in.Routing.Paths,
	}

	payload, err := m.invoker.Invoke(ctx, string(m.kind), req)
	if err != nil {
		return Advice{}, fmt.Errorf("ModelSpecialist.Advise: invoke %s: %w", m.kind, err)
	}
	return m.decode(payload, in)
}

func (m *ModelSpecialist) decode(payload map[string]any, in Input) (Advice, error) {
	strategy, err := llm.StringField(payload, "strategy", true)
	if err != nil {
		return Advice{}, fmt.Errorf("ModelSpecialist.decode: %w", err)
	}
	pb, ok := m.playbook()[strategy]
	if !ok {
		return Advice{}, fmt.Errorf("ModelSpecialist.decode: strategy %q not allowed for %s", strategy, m.kind)
	}

	confidence, err := llm.Float64Field(payload, "confidence", true)
	if err != nil {
		return Advice{}, fmt.Errorf("ModelSpecialist.decode: %w", err)
	}
	if confidence < 0 || confidence > 1 {
		return Advice{}, fmt.Errorf("ModelSpecialist.decode: confidence %v outside [0,1]", confidence)
	}

	a := pb.advice(m.kind, strategy)
	a.Confidence = confidence
	a.RiskLevel = strings.ToLower(string(in.Profile.RiskTolerance))
	a.Source = SourceModel

	// Optional fields keep the strategy's defaults when absent or malformed.
	if v, err := llm.StringsField(payload, "focus"); err == nil && len(v) > 0 {
		a.Focus = v
	}
	if v, err := llm.StringsField(payload, "educational_points"); err == nil && len(v) > 0 {
		a.EducationalPoints = v
	}
	if v, err := llm.StringField(payload, "allocation", false); err == nil && v != "" {
		a.Allocation = v
	}
	if v, err := llm.StringField(payload, "approach", false); err == nil && v != "" {
		a.Approach = v
	}

	switch m.kind {
	case SpecialistEquity:
		a.EducationalNote = equityNote
	case SpecialistFund:
		a.EducationalNote = fundNote
		a.Contribution = m.contribution(payload, in)
	}
	return a, nil
}

func (m *ModelSpecialist) contribution(payload map[string]any, in Input) *Contribution {
	if v, err := llm.OptionalFloat64Field(payload, "monthly_contribution"); err == nil && v != nil && *v >= 0 {
		return &Contribution{
			Amount:    *v,
			Frequency: "monthly",
			Reasoning: fmt.Sprintf("Recommended SIP based on %s risk tolerance and available surplus", in.Profile.RiskTolerance),
		}
	}
	if m.fund != nil {
		c := m.fund.Contribution(in.Profile.MonthlySurplus, in.Profile.RiskTolerance)
		return &c
	}
	return &Contribution{Frequency: "monthly", Reasoning: noSurplusReasoning}
}

func (m *ModelSpecialist) playbook() map[string]playbook {
	if m.kind == SpecialistEquity {
		return equityPlaybook
	}
	return fundPlaybook
}

func strategyOrder(kind SpecialistKind) []string {
	if kind == SpecialistEquity {
		return []string{EquityGrowthFocused, EquityDiversified, EquityConservativeIndex}
	}
	return []string{FundBeginnerSIP, FundConservative, FundGrowth, FundBalanced}
}
