package spending

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/rules"
	"github.com/dvloznov/fiscal-pilot/internal/signals"
)

func newPlanner() *Planner {
	return NewPlanner(config.DefaultThresholds().Spending, "₹")
}

func overspend(category string, spend float64, p domain.Priority) rules.Finding {
	return rules.Finding{
		Kind:      domain.FindingCategoryOverspend,
		Category:  category,
		Spend:     spend,
		Magnitude: spend / 1000,
		Priority:  p,
	}
}

func TestPlan_CategoryTopThreeIsStable(t *testing.T) {
	findings := []rules.Finding{
		overspend("A", 100, domain.PriorityLow),
		overspend("B", 200, domain.PriorityHigh),
		overspend("C", 300, domain.PriorityMedium),
		overspend("D", 400, domain.PriorityHigh),
		overspend("E", 500, domain.PriorityLow),
	}

	plan := newPlanner().Plan(signals.Snapshot{}, findings)

	require.Len(t, plan, 3)
	assert.Equal(t, "B", plan[0].Category)
	assert.Equal(t, domain.ActionBudgetAdjustment, plan[0].Kind)
	assert.Equal(t, "D", plan[1].Category)
	assert.Equal(t, domain.ActionBudgetAdjustment, plan[1].Kind)
	assert.Equal(t, "C", plan[2].Category)
	assert.Equal(t, domain.ActionWarning, plan[2].Kind)
	assert.Nil(t, plan[2].Amount, "warnings carry no amount")

	require.NotNil(t, plan[0].Amount)
	assert.Equal(t, 160.0, *plan[0].Amount)
	require.NotNil(t, plan[1].Amount)
	assert.Equal(t, 320.0, *plan[1].Amount)
}

func TestPlan_Messages(t *testing.T) {
	snap := signals.Snapshot{CurrentExpenses: 24000, PriorExpenses: 20000}
	findings := []rules.Finding{
		{Kind: domain.FindingCategoryOverspend, Category: "Rent", Spend: 30000, Magnitude: 60, Priority: domain.PriorityHigh},
		{Kind: domain.FindingSpendingIncrease, Magnitude: 20.5, Priority: domain.PriorityMedium},
	}

	plan := newPlanner().Plan(snap, findings)
	require.Len(t, plan, 2)

	assert.Equal(t, "High spending alert: Rent spending is 60.0% of your income", plan[0].Message)
	assert.Contains(t, plan[0].Reasoning, "Category 'Rent' spending (₹30,000.00) exceeds 30% of monthly income threshold")
	assert.Contains(t, plan[0].Reasoning, "Suggested budget limit: ₹24,000.00")

	assert.Equal(t, "Spending increased 20.5% compared to last month", plan[1].Message)
	assert.Equal(t, domain.ActionWarning, plan[1].Kind)
	assert.Empty(t, plan[1].Category)
	assert.Equal(t, domain.FindingSpendingIncrease, plan[1].Trigger)

	for _, a := range plan {
		assert.NotEmpty(t, a.Reasoning)
	}
}

func TestPlan_OvershootSuppressesSavings(t *testing.T) {
	snap := signals.Snapshot{EstimatedMonthlyIncome: 30000}
	findings := []rules.Finding{
		{Kind: domain.FindingPredictiveOvershoot, Magnitude: 36000, Priority: domain.PriorityHigh},
		{Kind: domain.FindingSavingsOpportunity, Magnitude: 6000, Priority: domain.PriorityLow},
	}

	plan := newPlanner().Plan(snap, findings)

	require.Len(t, plan, 1)
	assert.Equal(t, domain.ActionSavingSuggestion, plan[0].Kind)
	assert.Equal(t, domain.FindingPredictiveOvershoot, plan[0].Trigger)
	assert.Equal(t, "Predicted monthly spending (₹36,000.00) exceeds income", plan[0].Message)
	require.NotNil(t, plan[0].Amount)
	assert.Equal(t, 6000.0, *plan[0].Amount)
}

func TestPlan_StandaloneSavings(t *testing.T) {
	findings := []rules.Finding{
		{Kind: domain.FindingSavingsOpportunity, Magnitude: 5000, Priority: domain.PriorityLow},
	}

	plan := newPlanner().Plan(signals.Snapshot{}, findings)

	require.Len(t, plan, 1)
	assert.Equal(t, "Opportunity to save ₹5,000.00 this month", plan[0].Message)
	require.NotNil(t, plan[0].Amount)
	assert.Equal(t, 5000.0, *plan[0].Amount)
}

func TestPlan_OrderAcrossKinds(t *testing.T) {
	findings := []rules.Finding{
		{Kind: domain.FindingSavingsOpportunity, Magnitude: 100},
		{Kind: domain.FindingSpendingIncrease, Magnitude: 50},
		overspend("Dining", 9000, domain.PriorityMedium),
	}

	plan := newPlanner().Plan(signals.Snapshot{}, findings)

	require.Len(t, plan, 3)
	assert.Equal(t, domain.FindingCategoryOverspend, plan[0].Trigger)
	assert.Equal(t, domain.FindingSpendingIncrease, plan[1].Trigger)
	assert.Equal(t, domain.FindingSavingsOpportunity, plan[2].Trigger)
}

func TestPlan_NoFindings(t *testing.T) {
	assert.Empty(t, newPlanner().Plan(signals.Snapshot{}, nil))
}
