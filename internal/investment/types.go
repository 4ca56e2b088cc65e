// Package investment runs the PROFILE, INTENT, ROUTE, SPECIALIZE, RISK-GATE,
// CONSENSUS pipeline that selects an investment path for a subject.
package investment

import (
	"strings"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// Path is one of the named investment strategies.
type Path string

const (
	PathConservative Path = "conservative"
	PathBalanced     Path = "balanced"
	PathAggressive   Path = "aggressive"
	PathBeginner     Path = "beginner"
	PathShortTerm    Path = "short_term"
)

// PathInfo describes a path for display and routing.
type PathInfo struct {
	Key         Path                 `json:"key"`
	Name        string               `json:"name"`
	RiskLevel   domain.RiskTolerance `json:"risk_level"`
	Description string               `json:"description"`
}

var pathCatalog = map[Path]PathInfo{
	PathConservative: {PathConservative, "Conservative Path", domain.RiskLow, "Capital protection with low-risk investments"},
	PathBalanced:     {PathBalanced, "Balanced Path", domain.RiskMedium, "Diversified approach with balanced risk"},
	PathAggressive:   {PathAggressive, "Aggressive Growth Path", domain.RiskHigh, "Growth-focused with higher risk tolerance"},
	PathBeginner:     {PathBeginner, "Beginner Learning Path", domain.RiskLow, "Educational approach with low-risk starter investments"},
	PathShortTerm:    {PathShortTerm, "Short-Term Goal Path", domain.RiskLow, "Low-risk approach for near-term goals"},
}

// Describe returns the catalog entry for p.
func Describe(p Path) PathInfo {
	if info, ok := pathCatalog[p]; ok {
		return info
	}
	return PathInfo{Key: p, Name: string(p)}
}

// Name returns the display name of p.
func (p Path) Name() string {
	return Describe(p).Name
}

// Intent is a subject's financial intent.
type Intent string

const (
	IntentWealthGrowth      Intent = "wealth_growth"
	IntentCapitalProtection Intent = "capital_protection"
	IntentPassiveIncome     Intent = "passive_income"
	// IntentLearning only ever appears as a secondary intent.
	IntentLearning Intent = "learning"
)

// Words returns the intent with underscores replaced by spaces.
func (i Intent) Words() string {
	return strings.ReplaceAll(string(i), "_", " ")
}

// Stability classifies how steady monthly income is.
type Stability string

const (
	StabilityVeryStable Stability = "very_stable"
	StabilityStable     Stability = "stable"
	StabilityModerate   Stability = "moderate"
	StabilityVolatile   Stability = "volatile"
	StabilityUnknown    Stability = "unknown"
)

// IsStable reports very_stable or stable.
func (s Stability) IsStable() bool {
	return s == StabilityVeryStable || s == StabilityStable
}

// IsUnstable reports moderate or volatile. Unknown is neither stable nor unstable.
func (s Stability) IsUnstable() bool {
	return s == StabilityModerate || s == StabilityVolatile
}

// Archetype is an investor persona.
type Archetype string

const (
	ArchetypeGrowthOriented Archetype = "growth_oriented"
	ArchetypeConservative   Archetype = "conservative"
	ArchetypeBalanced       Archetype = "balanced"
	ArchetypeCautious       Archetype = "cautious"
	ArchetypeRebuilding     Archetype = "rebuilding"
	ArchetypeEmerging       Archetype = "emerging"
)

var archetypeNames = map[Archetype]string{
	ArchetypeGrowthOriented: "Growth-Oriented Investor",
	ArchetypeConservative:   "Conservative Investor",
	ArchetypeBalanced:       "Balanced Investor",
	ArchetypeCautious:       "Cautious Investor",
	ArchetypeRebuilding:     "Rebuilding Investor",
	ArchetypeEmerging:       "Emerging Investor",
}

// DisplayName returns the human-readable persona name.
func (a Archetype) DisplayName() string {
	if n, ok := archetypeNames[a]; ok {
		return n
	}
	return string(a)
}

// SpecialistKind identifies a specialist stage and tags its output.
type SpecialistKind string

const (
	SpecialistEquity SpecialistKind = "equity"
	SpecialistFund   SpecialistKind = "fund"
)

// Stage names used in routing output and error records.
const (
	StageProfiler  = "profiler"
	StageIntent    = "intent"
	StageRouter    = "router"
	StageRiskGate  = "risk_gate"
	StageConsensus = "consensus"
)

func containsPath(paths []Path, p Path) bool {
	for _, x := range paths {
		if x == p {
			return true
		}
	}
	return false
}
