package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/investment"
	"github.com/dvloznov/fiscal-pilot/internal/spending"
)

type fakeSpending struct {
	result   *spending.CycleResult
	subjects []string
}

func (f *fakeSpending) RunCycle(_ context.Context, subjectID string) *spending.CycleResult {
	f.subjects = append(f.subjects, subjectID)
	return f.result
}

type fakeInvestment struct {
	result *investment.Result
}

func (f *fakeInvestment) Run(_ context.Context, _ string) *investment.Result {
	return f.result
}

func TestCycleHandler_Spending(t *testing.T) {
	sp := &fakeSpending{result: &spending.CycleResult{Status: domain.StatusSuccess}}
	h := NewCycleHandler(sp, &fakeInvestment{})

	job := &CycleJob{JobID: "j1", Type: JobTypeSpending, SubjectID: "u1"}
	require.NoError(t, h(context.Background(), job))
	assert.Equal(t, []string{"u1"}, sp.subjects)
	assert.Equal(t, "success", job.Outcome)
}

func TestCycleHandler_InsufficientDataIsNotAFailure(t *testing.T) {
	sp := &fakeSpending{result: &spending.CycleResult{Status: domain.StatusInsufficientData, Message: "no transactions"}}
	h := NewCycleHandler(sp, &fakeInvestment{})

	job := &CycleJob{JobID: "j1", Type: JobTypeSpending, SubjectID: "u1"}
	require.NoError(t, h(context.Background(), job))
	assert.Equal(t, "insufficient_data", job.Outcome)
}

func TestCycleHandler_ErrorStatusFailsJob(t *testing.T) {
	inv := &fakeInvestment{result: &investment.Result{Status: domain.StatusError, Message: "store unavailable"}}
	h := NewCycleHandler(&fakeSpending{}, inv)

	job := &CycleJob{JobID: "j1", Type: JobTypeInvestment, SubjectID: "u1"}
	err := h(context.Background(), job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Equal(t, "error", job.Outcome)
}

func TestCycleHandler_InvestmentRecordsRecommendation(t *testing.T) {
	inv := &fakeInvestment{result: &investment.Result{
		Status:         domain.StatusSuccess,
		Recommendation: &investment.Recommendation{RecommendationID: "rec-9"},
	}}
	h := NewCycleHandler(&fakeSpending{}, inv)

	job := &CycleJob{JobID: "j1", Type: JobTypeInvestment, SubjectID: "u1"}
	require.NoError(t, h(context.Background(), job))
	assert.Equal(t, "rec-9", job.RecordID)
}

func TestCycleHandler_UnknownType(t *testing.T) {
	h := NewCycleHandler(&fakeSpending{}, &fakeInvestment{})
	err := h(context.Background(), &CycleJob{JobID: "j1", Type: "payroll"})
	assert.Error(t, err)
}

func TestParseJobType(t *testing.T) {
	jt, err := ParseJobType("investment")
	require.NoError(t, err)
	assert.Equal(t, JobTypeInvestment, jt)

	_, err = ParseJobType("Spending")
	assert.Error(t, err)
}
