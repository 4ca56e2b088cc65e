package spending

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/events"
)

type mockTransactionReader struct {
	FetchFunc func(ctx context.Context, subjectID string, since civil.Date) ([]domain.TransactionRecord, error)
}

func (m *mockTransactionReader) FetchTransactions(ctx context.Context, subjectID string, since civil.Date) ([]domain.TransactionRecord, error) {
	return m.FetchFunc(ctx, subjectID, since)
}

// memActions is an in-memory ActionRepository. failOn makes InsertAction
// fail for actions of that kind.
type memActions struct {
	mu      sync.Mutex
	actions map[string]domain.PersistedAction
	failOn  domain.ActionKind
	getErr  error
}

func newMemActions() *memActions {
	return &memActions{actions: make(map[string]domain.PersistedAction)}
}

func (m *memActions) InsertAction(_ context.Context, a domain.PersistedAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && a.Kind == m.failOn {
		return errors.New("write conflict")
	}
	m.actions[a.ActionID] = a
	return nil
}

func (m *memActions) GetAction(_ context.Context, subjectID, actionID string) (*domain.PersistedAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.actions[actionID]
	if !ok || a.SubjectID != subjectID {
		return nil, nil
	}
	return &a, nil
}

func (m *memActions) MarkActionResolved(_ context.Context, subjectID, actionID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[actionID]
	if !ok || a.SubjectID != subjectID || a.Resolved {
		return false, nil
	}
	a.Resolved = true
	a.ResolvedAt = &at
	m.actions[actionID] = a
	return true, nil
}

func (m *memActions) ListActions(_ context.Context, subjectID string, f domain.ActionFilter) ([]domain.PersistedAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PersistedAction
	for _, a := range m.actions {
		if a.SubjectID == subjectID && (!f.UnresolvedOnly || !a.Resolved) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type recordingPublisher struct {
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

var fixedNow = time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC)

func d(month time.Month, day int) civil.Date {
	return civil.Date{Year: 2025, Month: month, Day: day}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("act-%d", n)
	}
}

func newTestAgent(txs []domain.TransactionRecord, repo *memActions, opts ...Option) *Agent {
	reader := &mockTransactionReader{
		FetchFunc: func(_ context.Context, _ string, _ civil.Date) ([]domain.TransactionRecord, error) {
			return txs, nil
		},
	}
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
	}, opts...)
	return NewAgent(reader, repo, config.DefaultThresholds().Spending, "₹", opts...)
}

// overspendingHistory: income 30000, rent 16000 (53%), total 18000 by day 15
// of a 31 day month, 10000 last month.
func overspendingHistory() []domain.TransactionRecord {
	return []domain.TransactionRecord{
		{SubjectID: "user-1", Date: d(3, 1), Type: domain.TxIncome, Amount: 30000},
		{SubjectID: "user-1", Date: d(3, 2), Type: domain.TxExpense, Amount: -16000, Category: "Rent"},
		{SubjectID: "user-1", Date: d(3, 5), Type: domain.TxExpense, Amount: -2000, Category: "Dining"},
		{SubjectID: "user-1", Date: d(2, 10), Type: domain.TxExpense, Amount: -10000, Category: "Rent"},
	}
}

func TestRunCycle_Success(t *testing.T) {
	repo := newMemActions()
	pub := &recordingPublisher{}
	agent := newTestAgent(overspendingHistory(), repo, WithEvents(pub))

	res := agent.RunCycle(context.Background(), "user-1")

	require.Equal(t, domain.StatusSuccess, res.Status)
	require.NotNil(t, res.Observations)
	assert.Equal(t, 30000.0, res.Observations.EstimatedMonthlyIncome)
	assert.Equal(t, 18000.0, res.Observations.CurrentExpenses)

	// budget adjustment for Rent, increase warning, overshoot saving suggestion
	require.Len(t, res.ActionsTaken, 3)
	assert.Equal(t, domain.ActionBudgetAdjustment, res.ActionsTaken[0].Kind)
	assert.Equal(t, "Rent", res.ActionsTaken[0].Category)
	assert.Equal(t, domain.ActionWarning, res.ActionsTaken[1].Kind)
	assert.Equal(t, domain.ActionSavingSuggestion, res.ActionsTaken[2].Kind)
	assert.Equal(t, domain.FindingPredictiveOvershoot, res.ActionsTaken[2].Trigger)
	assert.Equal(t, []string{"act-1", "act-2", "act-3"}, res.ActionIDs())
	assert.Empty(t, res.Errors)

	for _, a := range res.ActionsTaken {
		assert.Equal(t, "user-1", a.SubjectID)
		assert.False(t, a.Resolved)
		assert.Equal(t, fixedNow, a.CreatedAt)
	}
	assert.Len(t, repo.actions, 3)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.CycleSpending, pub.events[0].Cycle)
	assert.Equal(t, 3, pub.events[0].ActionCount)
}

func TestRunCycle_InsufficientData(t *testing.T) {
	repo := newMemActions()
	txs := []domain.TransactionRecord{
		{Date: d(2, 10), Type: domain.TxExpense, Amount: -10000, Category: "Rent"},
	}
	res := newTestAgent(txs, repo).RunCycle(context.Background(), "user-1")

	assert.Equal(t, domain.StatusInsufficientData, res.Status)
	assert.Equal(t, "Not enough transactions to analyze", res.Message)
	assert.Empty(t, res.Findings)
	assert.Empty(t, res.Plan)
	assert.Empty(t, res.ActionsTaken)
	assert.Empty(t, repo.actions)
}

func TestRunCycle_ContinuesAfterPersistFailure(t *testing.T) {
	repo := newMemActions()
	repo.failOn = domain.ActionWarning

	res := newTestAgent(overspendingHistory(), repo).RunCycle(context.Background(), "user-1")

	assert.Equal(t, domain.StatusSuccess, res.Status)
	require.Len(t, res.Plan, 3)
	require.Len(t, res.ActionsTaken, 2)
	assert.Equal(t, domain.ActionBudgetAdjustment, res.ActionsTaken[0].Kind)
	assert.Equal(t, domain.ActionSavingSuggestion, res.ActionsTaken[1].Kind)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "write conflict")
}

func TestRunCycle_ReaderFailureIsErrorStatus(t *testing.T) {
	reader := &mockTransactionReader{
		FetchFunc: func(context.Context, string, civil.Date) ([]domain.TransactionRecord, error) {
			return nil, errors.New("connection refused")
		},
	}
	agent := NewAgent(reader, newMemActions(), config.DefaultThresholds().Spending, "₹",
		WithClock(func() time.Time { return fixedNow }))

	res := agent.RunCycle(context.Background(), "user-1")

	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, "spending cycle failed during observe", res.Message)
	assert.NotContains(t, res.Message, "connection refused")
	assert.Nil(t, res.Observations)
	assert.Empty(t, res.ActionsTaken)
}

func TestRunCycle_PanicIsRecovered(t *testing.T) {
	reader := &mockTransactionReader{
		FetchFunc: func(context.Context, string, civil.Date) ([]domain.TransactionRecord, error) {
			panic("nil map")
		},
	}
	agent := NewAgent(reader, newMemActions(), config.DefaultThresholds().Spending, "₹")

	var res *CycleResult
	require.NotPanics(t, func() {
		res = agent.RunCycle(context.Background(), "user-1")
	})
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusError, res.Status)
	assert.NotContains(t, res.Message, "nil map")
}

func TestRunCycle_FetchesFromPriorPeriodStart(t *testing.T) {
	var gotSince civil.Date
	reader := &mockTransactionReader{
		FetchFunc: func(_ context.Context, _ string, since civil.Date) ([]domain.TransactionRecord, error) {
			gotSince = since
			return nil, nil
		},
	}
	agent := NewAgent(reader, newMemActions(), config.DefaultThresholds().Spending, "₹",
		WithClock(func() time.Time { return fixedNow }))

	agent.RunCycle(context.Background(), "user-1")

	assert.Equal(t, d(2, 1), gotSince)
}

func TestResolveAction_Idempotent(t *testing.T) {
	repo := newMemActions()
	agent := newTestAgent(overspendingHistory(), repo)
	res := agent.RunCycle(context.Background(), "user-1")
	require.NotEmpty(t, res.ActionsTaken)
	id := res.ActionsTaken[0].ActionID

	assert.True(t, agent.ResolveAction(context.Background(), id, "user-1"))
	first := repo.actions[id].ResolvedAt
	require.NotNil(t, first)

	assert.True(t, agent.ResolveAction(context.Background(), id, "user-1"), "repeat resolve is a no-op")
	assert.Equal(t, first, repo.actions[id].ResolvedAt)

	assert.False(t, agent.ResolveAction(context.Background(), "missing", "user-1"))
	assert.False(t, agent.ResolveAction(context.Background(), id, "someone-else"))
}

func TestResolveAction_StoreErrorReturnsFalse(t *testing.T) {
	repo := newMemActions()
	repo.getErr = errors.New("timeout")
	agent := newTestAgent(nil, repo)

	assert.NotPanics(t, func() {
		assert.False(t, agent.ResolveAction(context.Background(), "act-1", "user-1"))
	})
}

func TestRecentActions(t *testing.T) {
	repo := newMemActions()
	agent := newTestAgent(overspendingHistory(), repo)
	res := agent.RunCycle(context.Background(), "user-1")
	require.Len(t, res.ActionsTaken, 3)
	agent.ResolveAction(context.Background(), res.ActionsTaken[0].ActionID, "user-1")

	all, err := agent.RecentActions(context.Background(), "user-1", domain.ActionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	open, err := agent.RecentActions(context.Background(), "user-1", domain.ActionFilter{UnresolvedOnly: true})
	require.NoError(t, err)
	assert.Len(t, open, 2)
}
