package config

import "fmt"

// Thresholds is the policy surface of both decision cycles. Every stage
// constructor takes the section it needs, so tests can override any value.
type Thresholds struct {
	Spending    SpendingThresholds   `yaml:"spending"`
	Investment  InvestmentThresholds `yaml:"investment"`
	Confidence  ConfidenceScores     `yaml:"confidence"`
	Specialists SpecialistThresholds `yaml:"specialists"`
	RiskScore   RiskScoreWeights     `yaml:"risk_score"`
}

// SpendingThresholds drive the rule evaluator and the action planner.
type SpendingThresholds struct {
	// CategoryOverspendRatio is the share of income above which a category overspends.
	CategoryOverspendRatio float64 `yaml:"category_overspend_ratio"`
	// CategoryHighRatio is the share of income above which an overspend is high priority.
	CategoryHighRatio float64 `yaml:"category_high_ratio"`
	// SpendingIncreaseRatio is the month-over-month growth that triggers a warning.
	SpendingIncreaseRatio float64 `yaml:"spending_increase_ratio"`
	// OvershootIncomeMultiple scales income before comparing predicted spend.
	OvershootIncomeMultiple float64 `yaml:"overshoot_income_multiple"`
	// SavingsTargetRate is the share of income the subject should keep.
	SavingsTargetRate float64 `yaml:"savings_target_rate"`
	// BudgetReductionFactor multiplies category spend to produce a suggested budget.
	BudgetReductionFactor float64 `yaml:"budget_reduction_factor"`
	// MaxCategoryActions caps category actions per cycle.
	MaxCategoryActions int `yaml:"max_category_actions"`
	// WindowDays is the lookback used when observing transactions.
	WindowDays int `yaml:"window_days"`
}

// InvestmentThresholds drive profiling, intent, routing and the risk gate.
type InvestmentThresholds struct {
	ProfileWindowDays          int     `yaml:"profile_window_days"`
	VeryStableCV               float64 `yaml:"very_stable_cv"`
	StableCV                   float64 `yaml:"stable_cv"`
	ModerateCV                 float64 `yaml:"moderate_cv"`
	HighRiskSurplusRatio       float64 `yaml:"high_risk_surplus_ratio"`
	LowRiskSurplusRatio        float64 `yaml:"low_risk_surplus_ratio"`
	AssumedEmergencyFundMonths float64 `yaml:"assumed_emergency_fund_months"`
	// BeginnerSurplus is shared by the intent classifier and the router.
	BeginnerSurplus     float64 `yaml:"beginner_surplus"`
	HighSurplus         float64 `yaml:"high_surplus"`
	ShortTermGoalYears  float64 `yaml:"short_term_goal_years"`
	MinimumSurplus      float64 `yaml:"minimum_surplus"`
	EmergencyFundMonths float64 `yaml:"emergency_fund_months"`
}

// SpecialistThresholds configure the equity and fund specialists.
type SpecialistThresholds struct {
	EquityConfidenceSurplus float64 `yaml:"equity_confidence_surplus"`
	FundConfidenceSurplus   float64 `yaml:"fund_confidence_surplus"`
	ContributionStep        float64 `yaml:"contribution_step"`
	ContributionRateHigh    float64 `yaml:"contribution_rate_high"`
	ContributionRateLow     float64 `yaml:"contribution_rate_low"`
	ContributionRateDefault float64 `yaml:"contribution_rate_default"`
}

// RiskScoreWeights shape the risk gate's score. Bands are checked in
// order and the first match applies its delta to Base.
type RiskScoreWeights struct {
	Base float64 `yaml:"base"`
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`

	// Surplus as a share of income.
	ThinSurplusRatio    float64 `yaml:"thin_surplus_ratio"`
	LowSurplusRatio     float64 `yaml:"low_surplus_ratio"`
	HealthySurplusRatio float64 `yaml:"healthy_surplus_ratio"`
	ThinSurplusDelta    float64 `yaml:"thin_surplus_delta"`
	LowSurplusDelta     float64 `yaml:"low_surplus_delta"`
	HealthySurplusDelta float64 `yaml:"healthy_surplus_delta"`

	VeryStableDelta float64 `yaml:"very_stable_delta"`
	StableDelta     float64 `yaml:"stable_delta"`
	ModerateDelta   float64 `yaml:"moderate_delta"`
	VolatileDelta   float64 `yaml:"volatile_delta"`

	// Emergency fund coverage in months of expenses.
	FullFundMonths    float64 `yaml:"full_fund_months"`
	PartialFundMonths float64 `yaml:"partial_fund_months"`
	MinimalFundMonths float64 `yaml:"minimal_fund_months"`
	FullFundDelta     float64 `yaml:"full_fund_delta"`
	PartialFundDelta  float64 `yaml:"partial_fund_delta"`
	MinimalFundDelta  float64 `yaml:"minimal_fund_delta"`
}

// ConfidenceScores are the fixed per-stage confidence values.
type ConfidenceScores struct {
	Profiler           float64 `yaml:"profiler"`
	Router             float64 `yaml:"router"`
	Risk               float64 `yaml:"risk"`
	IntentBase         float64 `yaml:"intent_base"`
	IntentGoalBonus    float64 `yaml:"intent_goal_bonus"`
	IntentProfileBonus float64 `yaml:"intent_profile_bonus"`
	IntentPenalty      float64 `yaml:"intent_penalty"`
	IntentMin          float64 `yaml:"intent_min"`
	IntentMax          float64 `yaml:"intent_max"`
	EquityHigh         float64 `yaml:"equity_high"`
	EquityLow          float64 `yaml:"equity_low"`
	FundHigh           float64 `yaml:"fund_high"`
	FundLow            float64 `yaml:"fund_low"`
}

// DefaultThresholds returns the production policy values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Spending: SpendingThresholds{
			CategoryOverspendRatio:  0.30,
			CategoryHighRatio:       0.50,
			SpendingIncreaseRatio:   0.20,
			OvershootIncomeMultiple: 1.0,
			SavingsTargetRate:       0.20,
			BudgetReductionFactor:   0.80,
			MaxCategoryActions:      3,
			WindowDays:              30,
		},
		Investment: InvestmentThresholds{
			ProfileWindowDays:          90,
			VeryStableCV:               0.1,
			StableCV:                   0.2,
			ModerateCV:                 0.3,
			HighRiskSurplusRatio:       0.3,
			LowRiskSurplusRatio:        0.1,
			AssumedEmergencyFundMonths: 3.0,
			BeginnerSurplus:            5000,
			HighSurplus:                20000,
			ShortTermGoalYears:         3,
			MinimumSurplus:             5000,
			EmergencyFundMonths:        3,
		},
		Confidence: ConfidenceScores{
			Profiler:           0.85,
			Router:             0.80,
			Risk:               0.90,
			IntentBase:         0.7,
			IntentGoalBonus:    0.15,
			IntentProfileBonus: 0.1,
			IntentPenalty:      0.1,
			IntentMin:          0.5,
			IntentMax:          0.95,
			EquityHigh:         0.75,
			EquityLow:          0.65,
			FundHigh:           0.80,
			FundLow:            0.70,
		},
		Specialists: SpecialistThresholds{
			EquityConfidenceSurplus: 10000,
			FundConfidenceSurplus:   5000,
			ContributionStep:        500,
			ContributionRateHigh:    0.60,
			ContributionRateLow:     0.40,
			ContributionRateDefault: 0.50,
		},
		RiskScore: RiskScoreWeights{
			Base:                50,
			Min:                 0,
			Max:                 100,
			ThinSurplusRatio:    0.1,
			LowSurplusRatio:     0.2,
			HealthySurplusRatio: 0.3,
			ThinSurplusDelta:    30,
			LowSurplusDelta:     15,
			HealthySurplusDelta: -15,
			VeryStableDelta:     -20,
			StableDelta:         -10,
			ModerateDelta:       10,
			VolatileDelta:       25,
			FullFundMonths:      6,
			PartialFundMonths:   3,
			MinimalFundMonths:   1,
			FullFundDelta:       -15,
			PartialFundDelta:    -5,
			MinimalFundDelta:    25,
		},
	}
}

// Validate rejects values that would make the rules meaningless.
func (t Thresholds) Validate() error {
	s := t.Spending
	if s.CategoryOverspendRatio <= 0 || s.CategoryHighRatio < s.CategoryOverspendRatio {
		return fmt.Errorf("thresholds.spending: category ratios must satisfy 0 < overspend <= high")
	}
	if s.MaxCategoryActions < 0 {
		return fmt.Errorf("thresholds.spending.max_category_actions must not be negative")
	}
	if s.WindowDays <= 0 {
		return fmt.Errorf("thresholds.spending.window_days must be positive")
	}
	i := t.Investment
	if i.ProfileWindowDays <= 0 {
		return fmt.Errorf("thresholds.investment.profile_window_days must be positive")
	}
	if !(i.VeryStableCV <= i.StableCV && i.StableCV <= i.ModerateCV) {
		return fmt.Errorf("thresholds.investment: stability bands must be ascending")
	}
	if i.LowRiskSurplusRatio > i.HighRiskSurplusRatio {
		return fmt.Errorf("thresholds.investment: low_risk_surplus_ratio exceeds high_risk_surplus_ratio")
	}
	c := t.Confidence
	if c.IntentMin > c.IntentMax {
		return fmt.Errorf("thresholds.confidence: intent_min exceeds intent_max")
	}
	r := t.RiskScore
	if r.Min > r.Max {
		return fmt.Errorf("thresholds.risk_score: min exceeds max")
	}
	if !(r.ThinSurplusRatio <= r.LowSurplusRatio && r.LowSurplusRatio <= r.HealthySurplusRatio) {
		return fmt.Errorf("thresholds.risk_score: surplus ratio bands must be ascending")
	}
	if !(r.MinimalFundMonths <= r.PartialFundMonths && r.PartialFundMonths <= r.FullFundMonths) {
		return fmt.Errorf("thresholds.risk_score: emergency fund bands must be ascending")
	}
	if t.Specialists.ContributionStep <= 0 {
		return fmt.Errorf("thresholds.specialists.contribution_step must be positive")
	}
	return nil
}
