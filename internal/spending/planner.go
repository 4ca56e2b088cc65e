package spending

import (
	"fmt"
	"sort"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/money"
	"github.com/dvloznov/fiscal-pilot/internal/rules"
	"github.com/dvloznov/fiscal-pilot/internal/signals"
)

// Planner turns findings into an ordered list of interventions.
type Planner struct {
	t        config.SpendingThresholds
	currency string
}

// NewPlanner creates a Planner. currency is the symbol used in messages.
func NewPlanner(t config.SpendingThresholds, currency string) *Planner {
	return &Planner{t: t, currency: currency}
}

// Plan decides which actions to emit, in order: category actions by
// priority, then a spending-increase warning, then at most one saving
// suggestion. Predictive overshoot suppresses the standalone savings one.
func (p *Planner) Plan(s signals.Snapshot, findings []rules.Finding) []domain.PlannedAction {
	var plan []domain.PlannedAction

	var overspends []rules.Finding
	for _, f := range findings {
		if f.Kind == domain.FindingCategoryOverspend {
			overspends = append(overspends, f)
		}
	}
	sort.SliceStable(overspends, func(i, j int) bool {
		return overspends[i].Priority.Rank() > overspends[j].Priority.Rank()
	})
	if len(overspends) > p.t.MaxCategoryActions {
		overspends = overspends[:p.t.MaxCategoryActions]
	}
	for _, f := range overspends {
		plan = append(plan, p.categoryAction(f))
	}

	if f, ok := rules.Find(findings, domain.FindingSpendingIncrease); ok {
		plan = append(plan, domain.PlannedAction{
			Kind:    domain.ActionWarning,
			Message: fmt.Sprintf("Spending increased %.1f%% compared to last month", f.Magnitude),
			Reasoning: fmt.Sprintf(
				"Current month expenses (%s) are %.1f%% higher than last month (%s). This exceeds the %s increase threshold.",
				p.amount(s.CurrentExpenses), f.Magnitude, p.amount(s.PriorExpenses), percent(p.t.SpendingIncreaseRatio)),
			Trigger: domain.FindingSpendingIncrease,
		})
	}

	savings, hasSavings := rules.Find(findings, domain.FindingSavingsOpportunity)
	if f, ok := rules.Find(findings, domain.FindingPredictiveOvershoot); ok {
		suggested := 0.0
		if hasSavings {
			suggested = savings.Magnitude
		}
		plan = append(plan, domain.PlannedAction{
			Kind:    domain.ActionSavingSuggestion,
			Message: fmt.Sprintf("Predicted monthly spending (%s) exceeds income", p.amount(f.Magnitude)),
			Reasoning: fmt.Sprintf(
				"Based on current spending rate, predicted end-of-month expenses (%s) will exceed monthly income (%s). Consider reducing discretionary spending. Recommended monthly savings: %s",
				p.amount(f.Magnitude), p.amount(s.EstimatedMonthlyIncome), p.amount(suggested)),
			Amount:  &suggested,
			Trigger: domain.FindingPredictiveOvershoot,
		})
	} else if hasSavings {
		suggested := savings.Magnitude
		plan = append(plan, domain.PlannedAction{
			Kind:    domain.ActionSavingSuggestion,
			Message: fmt.Sprintf("Opportunity to save %s this month", p.amount(suggested)),
			Reasoning: fmt.Sprintf(
				"Based on current spending patterns, you could save approximately %s per month (%s of income target). Consider setting aside this amount.",
				p.amount(suggested), percent(p.t.SavingsTargetRate)),
			Amount:  &suggested,
			Trigger: domain.FindingSavingsOpportunity,
		})
	}

	return plan
}

func (p *Planner) categoryAction(f rules.Finding) domain.PlannedAction {
	if f.Priority == domain.PriorityHigh {
		budget := f.Spend * p.t.BudgetReductionFactor
		return domain.PlannedAction{
			Kind:     domain.ActionBudgetAdjustment,
			Category: f.Category,
			Message:  fmt.Sprintf("High spending alert: %s spending is %.1f%% of your income", f.Category, f.Magnitude),
			Reasoning: fmt.Sprintf(
				"Category '%s' spending (%s) exceeds %s of monthly income threshold. Consider reducing expenses in this category. Suggested budget limit: %s",
				f.Category, p.amount(f.Spend), percent(p.t.CategoryOverspendRatio), p.amount(budget)),
			Amount:  &budget,
			Trigger: domain.FindingCategoryOverspend,
		}
	}
	return domain.PlannedAction{
		Kind:     domain.ActionWarning,
		Category: f.Category,
		Message:  fmt.Sprintf("Spending alert: %s spending is above recommended threshold", f.Category),
		Reasoning: fmt.Sprintf(
			"Category '%s' spending (%.1f%% of income) is above the %s threshold. Monitor this category closely.",
			f.Category, f.Magnitude, percent(p.t.CategoryOverspendRatio)),
		Trigger: domain.FindingCategoryOverspend,
	}
}

func (p *Planner) amount(v float64) string {
	return money.Format(p.currency, v)
}

func percent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}
