package domain

import "time"

// ActionKind classifies a spending intervention.
type ActionKind string

const (
	ActionWarning          ActionKind = "warning"
	ActionBudgetAdjustment ActionKind = "budget_adjustment"
	ActionSavingSuggestion ActionKind = "saving_suggestion"
)

// Valid reports whether k is one of the known action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionWarning, ActionBudgetAdjustment, ActionSavingSuggestion:
		return true
	}
	return false
}

// FindingKind names the rule that fired.
type FindingKind string

const (
	FindingCategoryOverspend   FindingKind = "category_overspend"
	FindingSpendingIncrease    FindingKind = "spending_increase"
	FindingPredictiveOvershoot FindingKind = "predictive_overshoot"
	FindingSavingsOpportunity  FindingKind = "savings_opportunity"
)

// Priority orders findings and safety recommendations.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank returns 3, 2, 1 for high, medium, low and 0 otherwise.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// PlannedAction is an intervention decided by the planner but not yet stored.
// Amount holds the suggested budget for budget adjustments and the suggested
// savings for saving suggestions; it is nil for warnings.
type PlannedAction struct {
	Kind      ActionKind  `json:"kind"`
	Message   string      `json:"message"`
	Reasoning string      `json:"reasoning"`
	Category  string      `json:"category,omitempty"`
	Amount    *float64    `json:"amount,omitempty"`
	Trigger   FindingKind `json:"trigger"`
}

// PersistedAction is the durable record of an executed PlannedAction.
type PersistedAction struct {
	ActionID  string `json:"action_id"`
	SubjectID string `json:"subject_id"`
	PlannedAction
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ActionFilter narrows action listings.
type ActionFilter struct {
	UnresolvedOnly bool
	Limit          int // 0 means no limit
}

// CycleStatus is the terminal outcome of a decision cycle.
type CycleStatus string

const (
	StatusSuccess          CycleStatus = "success"
	StatusInsufficientData CycleStatus = "insufficient_data"
	StatusError            CycleStatus = "error"
)
