package domain

import "strings"

// GoalKind is the declared purpose of a subject's savings.
type GoalKind string

const (
	GoalRetirement         GoalKind = "retirement"
	GoalHouse              GoalKind = "house"
	GoalEducation          GoalKind = "education"
	GoalWealthAccumulation GoalKind = "wealth_accumulation"
	GoalEmergencyFund      GoalKind = "emergency_fund"
	GoalPassiveIncome      GoalKind = "passive_income"
)

// DeclaredGoal is the goal a subject entered in their preferences.
type DeclaredGoal struct {
	Kind                   GoalKind `json:"kind"`
	Amount                 *float64 `json:"amount,omitempty"`
	TimelineYears          *float64 `json:"timeline_years,omitempty"`
	InterestedAssetClasses []string `json:"interested_asset_classes,omitempty"`
}

// RiskTolerance is a coarse appetite for risk.
type RiskTolerance string

const (
	RiskLow    RiskTolerance = "Low"
	RiskMedium RiskTolerance = "Medium"
	RiskHigh   RiskTolerance = "High"
)

// ParseRiskTolerance accepts case-insensitive names; ok is false for anything else.
func ParseRiskTolerance(s string) (RiskTolerance, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	}
	return "", false
}

// RiskProfile is a previously assessed risk profile for a subject.
type RiskProfile struct {
	Tolerance           RiskTolerance `json:"tolerance"`
	EmergencyFundMonths *float64      `json:"emergency_fund_months,omitempty"`
}
