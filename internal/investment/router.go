package investment

import (
	"fmt"
	"strings"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// Routing is the router's output.
type Routing struct {
	Paths       []Path           `json:"selected_paths"`
	PathDetails []PathInfo       `json:"path_details"`
	Specialists []SpecialistKind `json:"specialists"`
	// Stages lists the specialists to run followed by the risk gate.
	Stages     []string `json:"next_stages"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

// Selected reports whether p was selected.
func (r Routing) Selected(p Path) bool {
	return containsPath(r.Paths, p)
}

// Router picks the investment path(s) for a profile and intent.
type Router struct {
	t          config.InvestmentThresholds
	confidence float64
	registry   *Registry
}

// NewRouter creates a Router. registry supplies the path to specialist mapping.
func NewRouter(th config.Thresholds, registry *Registry) *Router {
	return &Router{t: th.Investment, confidence: th.Confidence.Router, registry: registry}
}

// Route applies the short-circuit path rules; the first match wins.
func (r *Router) Route(p Profile, in IntentResult) Routing {
	beginner := p.MonthlySurplus < r.t.BeginnerSurplus || in.HasSecondary(IntentLearning)

	var paths []Path
	switch {
	case beginner:
		paths = []Path{PathBeginner}
	case r.shortTermGoal(p):
		paths = []Path{PathShortTerm}
	default:
		paths = []Path{r.byIntent(in.Primary, p.RiskTolerance)}
	}

	specialists := r.registry.SpecialistsFor(paths)
	stages := make([]string, 0, len(specialists)+1)
	for _, s := range specialists {
		stages = append(stages, string(s))
	}
	stages = append(stages, StageRiskGate)

	details := make([]PathInfo, len(paths))
	names := make([]string, len(paths))
	for i, path := range paths {
		details[i] = Describe(path)
		names[i] = details[i].Name
	}

	var parts []string
	if beginner {
		parts = append(parts, "User profile indicates beginner status")
	}
	parts = append(parts,
		fmt.Sprintf("Primary intent: %s", in.Primary.Words()),
		fmt.Sprintf("Risk tolerance: %s", p.RiskTolerance),
		fmt.Sprintf("Selected path(s): %s", strings.Join(names, ", ")),
	)

	return Routing{
		Paths:       paths,
		PathDetails: details,
		Specialists: specialists,
		Stages:      stages,
		Reasoning:   strings.Join(parts, ". "),
		Confidence:  r.confidence,
	}
}

func (r *Router) shortTermGoal(p Profile) bool {
	if !p.HasGoal() || p.Goal.TimelineYears == nil {
		return false
	}
	years := *p.Goal.TimelineYears
	return years > 0 && years < r.t.ShortTermGoalYears
}

func (r *Router) byIntent(intent Intent, tol domain.RiskTolerance) Path {
	switch {
	case intent == IntentCapitalProtection || tol == domain.RiskLow:
		return PathConservative
	case intent == IntentWealthGrowth && tol == domain.RiskHigh:
		return PathAggressive
	default:
		// wealth_growth at medium tolerance and passive_income both land here.
		return PathBalanced
	}
}
