package investment

import (
	"context"

	"github.com/dvloznov/fiscal-pilot/internal/config"
)

// AdviceSource records where a specialist's advice came from.
type AdviceSource string

const (
	SourceRules   AdviceSource = "rules"
	SourceModel   AdviceSource = "model"
	SourceDefault AdviceSource = "default"
)

// Contribution is a recommended recurring investment amount.
type Contribution struct {
	Amount    float64 `json:"amount"`
	Frequency string  `json:"frequency"`
	Reasoning string  `json:"reasoning"`
}

// Advice is the output of any specialist, tagged by Kind.
type Advice struct {
	Kind              SpecialistKind `json:"kind"`
	Strategy          string         `json:"strategy"`
	Confidence        float64        `json:"confidence"`
	RiskLevel         string         `json:"risk_level"`
	AllocationBand    string         `json:"allocation_band"`
	Allocation        string         `json:"allocation"`
	Approach          string         `json:"approach"`
	Focus             []string       `json:"focus"`
	EducationalPoints []string       `json:"educational_points"`
	EducationalNote   string         `json:"educational_note"`
	Contribution      *Contribution  `json:"contribution,omitempty"`
	Source            AdviceSource   `json:"source"`
}

// ContributionAmount returns the contribution amount or 0.
func (a Advice) ContributionAmount() float64 {
	if a.Contribution == nil {
		return 0
	}
	return a.Contribution.Amount
}

// Input is what every specialist sees.
type Input struct {
	Profile Profile      `json:"profile"`
	Intent  IntentResult `json:"intent"`
	Routing Routing      `json:"routing"`
}

// Specialist produces strategy advice for the selected paths.
type Specialist interface {
	Kind() SpecialistKind
	Advise(ctx context.Context, in Input) (Advice, error)
}

var defaultPathSpecialists = map[Path][]SpecialistKind{
	PathConservative: {SpecialistFund},
	PathBalanced:     {SpecialistEquity, SpecialistFund},
	PathAggressive:   {SpecialistEquity},
	PathBeginner:     {SpecialistFund},
	PathShortTerm:    {SpecialistFund},
}

// specialistOrder fixes the order specialists run in, regardless of
// which path requested them.
var specialistOrder = []SpecialistKind{SpecialistEquity, SpecialistFund}

// Registry maps paths to the specialists they need and holds the
// implementation for each specialist kind.
type Registry struct {
	byPath      map[Path][]SpecialistKind
	specialists map[SpecialistKind]Specialist
}

// NewRegistry returns a registry with the default path mapping and the
// given implementations.
func NewRegistry(specialists ...Specialist) *Registry {
	r := &Registry{
		byPath:      make(map[Path][]SpecialistKind, len(defaultPathSpecialists)),
		specialists: make(map[SpecialistKind]Specialist),
	}
	for p, kinds := range defaultPathSpecialists {
		r.byPath[p] = append([]SpecialistKind(nil), kinds...)
	}
	for _, s := range specialists {
		r.Register(s)
	}
	return r
}

// NewRuleRegistry returns a registry backed by the rule-based specialists.
func NewRuleRegistry(th config.Thresholds) *Registry {
	return NewRegistry(NewEquitySpecialist(th), NewFundSpecialist(th))
}

// Register installs or replaces the implementation for s.Kind().
func (r *Registry) Register(s Specialist) {
	r.specialists[s.Kind()] = s
}

// Get returns the implementation for kind.
func (r *Registry) Get(kind SpecialistKind) (Specialist, bool) {
	s, ok := r.specialists[kind]
	return s, ok
}

// SpecialistsFor returns the union of specialists needed by paths, in
// registry order.
func (r *Registry) SpecialistsFor(paths []Path) []SpecialistKind {
	need := make(map[SpecialistKind]bool)
	for _, p := range paths {
		for _, k := range r.byPath[p] {
			need[k] = true
		}
	}
	out := make([]SpecialistKind, 0, len(need))
	for _, k := range specialistOrder {
		if need[k] {
			out = append(out, k)
		}
	}
	return out
}

// DefaultAdvice is the fallback used when a specialist fails.
func DefaultAdvice(kind SpecialistKind, conf config.ConfidenceScores) Advice {
	switch kind {
	case SpecialistEquity:
		a := equityPlaybook[EquityConservativeIndex].advice(SpecialistEquity, EquityConservativeIndex)
		a.Confidence = conf.EquityHigh
		a.RiskLevel = "low"
		a.EducationalNote = equityNote
		a.Source = SourceDefault
		return a
	default:
		a := fundPlaybook[FundBalanced].advice(SpecialistFund, FundBalanced)
		a.Confidence = conf.FundHigh
		a.RiskLevel = "medium"
		a.EducationalNote = fundNote
		a.Contribution = &Contribution{Frequency: "monthly", Reasoning: noSurplusReasoning}
		a.Source = SourceDefault
		return a
	}
}

// playbook is the fixed copy attached to one strategy.
type playbook struct {
	band       string
	allocation string
	approach   string
	focus      []string
	points     []string
}

func (p playbook) advice(kind SpecialistKind, strategy string) Advice {
	return Advice{
		Kind:              kind,
		Strategy:          strategy,
		AllocationBand:    p.band,
		Allocation:        p.allocation,
		Approach:          p.approach,
		Focus:             append([]string(nil), p.focus...),
		EducationalPoints: append([]string(nil), p.points...),
	}
}
