package investment

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/money"
)

// Suggestion types.
const (
	SuggestionEquity = "equity"
	SuggestionFunds  = "etf_mutual_funds"
)

// Suggestion is one investment suggestion derived from a specialist.
type Suggestion struct {
	Type                string   `json:"type"`
	Strategy            string   `json:"strategy"`
	Allocation          string   `json:"allocation,omitempty"`
	Focus               []string `json:"focus"`
	EducationalPoints   []string `json:"educational_points,omitempty"`
	MonthlyContribution *float64 `json:"monthly_contribution,omitempty"`
}

// ActionableStep is a concrete next step for the subject.
type ActionableStep struct {
	Step      string `json:"step"`
	Reasoning string `json:"reasoning"`
}

// RiskWarning is a high-priority safety recommendation surfaced to the subject.
type RiskWarning struct {
	Warning   string `json:"warning"`
	Reasoning string `json:"reasoning"`
}

// StageReasoning keeps each stage's reasoning for explainability.
type StageReasoning struct {
	Profiler    ProfilerReasoning   `json:"profiler"`
	Intent      IntentReasoning     `json:"intent"`
	Router      RouterReasoning     `json:"router"`
	Risk        RiskReasoning       `json:"risk"`
	Specialists []SpecialistSummary `json:"specialists,omitempty"`
}

type ProfilerReasoning struct {
	Archetype       Archetype            `json:"archetype"`
	IncomeStability Stability            `json:"income_stability"`
	RiskTolerance   domain.RiskTolerance `json:"risk_tolerance"`
	MonthlySurplus  float64              `json:"monthly_surplus"`
}

type IntentReasoning struct {
	Primary   Intent   `json:"primary_intent"`
	Secondary []Intent `json:"secondary_intents"`
	Reasoning string   `json:"reasoning"`
}

type RouterReasoning struct {
	SelectedPaths []Path `json:"selected_paths"`
	Reasoning     string `json:"reasoning"`
}

type RiskReasoning struct {
	Score           float64                `json:"risk_score"`
	Checks          SafetyChecks           `json:"safety_checks"`
	BlockedPaths    []Path                 `json:"blocked_paths"`
	Reasons         []string               `json:"override_reasons"`
	Recommendations []SafetyRecommendation `json:"recommendations"`
}

type SpecialistSummary struct {
	Kind       SpecialistKind `json:"kind"`
	Strategy   string         `json:"strategy"`
	Confidence float64        `json:"confidence"`
	Source     AdviceSource   `json:"source"`
}

// Recommendation is the durable output of an investment run.
type Recommendation struct {
	RecommendationID string               `json:"recommendation_id"`
	SubjectID        string               `json:"subject_id"`
	PrimaryPath      Path                 `json:"primary_path"`
	PrimaryPathName  string               `json:"primary_path_name"`
	Paths            []Path               `json:"paths"`
	Suggestions      []Suggestion         `json:"suggestions"`
	Steps            []ActionableStep     `json:"actionable_steps"`
	Warnings         []RiskWarning        `json:"risk_warnings"`
	Reasoning        string               `json:"reasoning"`
	StageReasoning   StageReasoning       `json:"stage_reasoning"`
	Confidence       float64              `json:"confidence"`
	SafetyOverride   bool                 `json:"safety_override"`
	SafetyReason     string               `json:"safety_reason,omitempty"`
	Archetype        Archetype            `json:"archetype"`
	RiskTolerance    domain.RiskTolerance `json:"risk_tolerance"`
	PrimaryIntent    Intent               `json:"primary_intent"`
	Errors           []string             `json:"errors,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// ConsensusInput gathers every stage output the resolver combines.
type ConsensusInput struct {
	Profile Profile
	Intent  IntentResult
	Routing Routing
	Advice  []Advice
	Risk    RiskAssessment
}

// ConsensusResolver merges stage outputs into one recommendation.
type ConsensusResolver struct {
	currency string
}

// NewConsensusResolver creates a ConsensusResolver.
func NewConsensusResolver(currency string) *ConsensusResolver {
	return &ConsensusResolver{currency: currency}
}

// Resolve builds the recommendation. Identity and timestamps are left for
// the caller. The result is deterministic for a given input.
func (c *ConsensusResolver) Resolve(in ConsensusInput) Recommendation {
	final := make([]Path, 0, len(in.Routing.Paths))
	for _, p := range in.Routing.Paths {
		if !in.Risk.Blocked(p) {
			final = append(final, p)
		}
	}
	override := in.Risk.Override
	if len(final) == 0 {
		final = []Path{PathConservative}
		if len(in.Routing.Paths) > 0 {
			override = true
		}
	}
	primary := final[0]

	rec := Recommendation{
		SubjectID:       in.Profile.SubjectID,
		PrimaryPath:     primary,
		PrimaryPathName: primary.Name(),
		Paths:           final,
		Suggestions:     []Suggestion{},
		Steps:           []ActionableStep{},
		Warnings:        []RiskWarning{},
		SafetyOverride:  override,
		SafetyReason:    in.Risk.OverrideReason(),
		Archetype:       in.Profile.Archetype,
		RiskTolerance:   in.Profile.RiskTolerance,
		PrimaryIntent:   in.Intent.Primary,
	}

	for _, a := range in.Advice {
		switch a.Kind {
		case SpecialistEquity:
			rec.Suggestions = append(rec.Suggestions, Suggestion{
				Type:              SuggestionEquity,
				Strategy:          a.Strategy,
				Allocation:        a.Allocation,
				Focus:             a.Focus,
				EducationalPoints: a.EducationalPoints,
			})
			if len(a.Focus) > 0 {
				rec.Steps = append(rec.Steps, ActionableStep{
					Step:      "Research broad-market index funds",
					Reasoning: "Index funds provide diversification without stock-picking risk",
				})
			}
		case SpecialistFund:
			amount := a.ContributionAmount()
			rec.Suggestions = append(rec.Suggestions, Suggestion{
				Type:                SuggestionFunds,
				Strategy:            a.Strategy,
				Allocation:          a.Allocation,
				Focus:               a.Focus,
				EducationalPoints:   a.EducationalPoints,
				MonthlyContribution: &amount,
			})
			if amount > 0 {
				rec.Steps = append(rec.Steps, ActionableStep{
					Step:      fmt.Sprintf("Start SIP of %s per month", money.FormatWhole(c.currency, amount)),
					Reasoning: "Systematic Investment Plan helps in disciplined investing",
				})
			}
		}
	}
	if len(rec.Steps) == 0 {
		rec.Steps = []ActionableStep{
			{Step: "Build emergency fund (3-6 months expenses)", Reasoning: "Emergency fund provides financial security"},
			{Step: "Research investment options based on your risk profile", Reasoning: "Understanding options helps make informed decisions"},
		}
	}

	for _, r := range in.Risk.Recommendations {
		if r.Priority == domain.PriorityHigh {
			rec.Warnings = append(rec.Warnings, RiskWarning{Warning: r.Recommendation, Reasoning: r.Reasoning})
		}
	}

	rec.StageReasoning = stageReasoning(in)
	rec.Confidence = confidence(in)
	rec.Reasoning = c.narrative(in, rec)
	return rec
}

func (c *ConsensusResolver) narrative(in ConsensusInput, rec Recommendation) string {
	parts := []string{
		fmt.Sprintf("Based on your profile as a %s with %s risk tolerance", in.Profile.Archetype.DisplayName(), in.Profile.RiskTolerance),
		fmt.Sprintf("your primary intent is %s", in.Intent.Primary.Words()),
		fmt.Sprintf("the %s was selected", rec.PrimaryPathName),
	}
	if rec.SafetyOverride && rec.SafetyReason != "" {
		parts = append(parts, "Safety adjustments: "+rec.SafetyReason)
	}
	for _, a := range in.Advice {
		switch a.Kind {
		case SpecialistEquity:
			parts = append(parts, "Equity specialist recommended index-focused approach")
		case SpecialistFund:
			if a.ContributionAmount() > 0 {
				parts = append(parts, "SIP strategy recommended for disciplined investing")
			}
		}
	}
	return strings.Join(parts, ". ") + "."
}

func stageReasoning(in ConsensusInput) StageReasoning {
	sr := StageReasoning{
		Profiler: ProfilerReasoning{
			Archetype:       in.Profile.Archetype,
			IncomeStability: in.Profile.Stability,
			RiskTolerance:   in.Profile.RiskTolerance,
			MonthlySurplus:  in.Profile.MonthlySurplus,
		},
		Intent: IntentReasoning{
			Primary:   in.Intent.Primary,
			Secondary: in.Intent.Secondary,
			Reasoning: in.Intent.Reasoning,
		},
		Router: RouterReasoning{
			SelectedPaths: in.Routing.Paths,
			Reasoning:     in.Routing.Reasoning,
		},
		Risk: RiskReasoning{
			Score:           in.Risk.Score,
			Checks:          in.Risk.Checks,
			BlockedPaths:    in.Risk.BlockedPaths,
			Reasons:         in.Risk.Reasons,
			Recommendations: in.Risk.Recommendations,
		},
	}
	for _, a := range in.Advice {
		sr.Specialists = append(sr.Specialists, SpecialistSummary{
			Kind:       a.Kind,
			Strategy:   a.Strategy,
			Confidence: a.Confidence,
			Source:     a.Source,
		})
	}
	return sr
}

// confidence is the mean over the fixed stages and the specialists that ran.
func confidence(in ConsensusInput) float64 {
	scores := []float64{in.Profile.Confidence, in.Intent.Confidence, in.Routing.Confidence, in.Risk.Confidence}
	for _, a := range in.Advice {
		scores = append(scores, a.Confidence)
	}
	return money.Round(mean(scores), 2)
}
