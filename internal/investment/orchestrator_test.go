package investment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/events"
	"github.com/dvloznov/fiscal-pilot/internal/metrics"
)

type mockTransactionReader struct {
	FetchFunc func(ctx context.Context, subjectID string, since civil.Date) ([]domain.TransactionRecord, error)
}

func (m *mockTransactionReader) FetchTransactions(ctx context.Context, subjectID string, since civil.Date) ([]domain.TransactionRecord, error) {
	return m.FetchFunc(ctx, subjectID, since)
}

type mockGoalReader struct {
	FetchFunc func(ctx context.Context, subjectID string) (*domain.DeclaredGoal, error)
}

func (m *mockGoalReader) FetchDeclaredGoal(ctx context.Context, subjectID string) (*domain.DeclaredGoal, error) {
	return m.FetchFunc(ctx, subjectID)
}

type mockRiskProfileReader struct {
	profile *domain.RiskProfile
}

func (m *mockRiskProfileReader) FetchRiskProfile(context.Context, string) (*domain.RiskProfile, error) {
	return m.profile, nil
}

type memRecommendations struct {
	mu      sync.Mutex
	saved   []Recommendation
	saveErr error
}

func (m *memRecommendations) SaveRecommendation(_ context.Context, rec Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rec)
	return nil
}

func (m *memRecommendations) LatestRecommendation(_ context.Context, subjectID string) (*Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].SubjectID == subjectID {
			rec := m.saved[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memRecommendations) RecommendationHistory(_ context.Context, subjectID string, limit int) ([]Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Recommendation
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if m.saved[i].SubjectID == subjectID {
			out = append(out, m.saved[i])
		}
	}
	return out, nil
}

type recordingSink struct {
	audits []Audit
	err    error
}

func (r *recordingSink) ExportAudit(_ context.Context, a Audit) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.audits = append(r.audits, a)
	return "gs://audit/" + a.Recommendation.RecommendationID + ".json", nil
}

type recordingPublisher struct {
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

var runNow = time.Date(2025, time.March, 20, 8, 0, 0, 0, time.UTC)

func staticReader(txs []domain.TransactionRecord) *mockTransactionReader {
	return &mockTransactionReader{FetchFunc: func(context.Context, string, civil.Date) ([]domain.TransactionRecord, error) {
		return txs, nil
	}}
}

func recIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}
}

func newTestOrchestrator(reader TransactionReader, repo *memRecommendations, opts ...OrchestratorOption) *Orchestrator {
	opts = append([]OrchestratorOption{
		WithNow(func() time.Time { return runNow }),
		WithIDs(recIDs()),
	}, opts...)
	return NewOrchestrator(reader, nil, repo, config.DefaultThresholds(), "₹", opts...)
}

func TestRun_SteadyEarnerGetsAggressivePath(t *testing.T) {
	repo := &memRecommendations{}
	sink := &recordingSink{}
	pub := &recordingPublisher{}
	o := newTestOrchestrator(staticReader(steadyHistory()), repo, WithAuditSink(sink), WithPublisher(pub))

	res := o.Run(context.Background(), "user-1")

	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	require.NotNil(t, res.Recommendation)
	rec := res.Recommendation
	assert.Equal(t, "rec-1", rec.RecommendationID)
	assert.Equal(t, PathAggressive, rec.PrimaryPath)
	assert.False(t, rec.SafetyOverride)
	assert.Equal(t, runNow, rec.CreatedAt)
	assert.Equal(t, 0.82, rec.Confidence)
	require.Len(t, rec.Suggestions, 1)
	assert.Equal(t, EquityGrowthFocused, rec.Suggestions[0].Strategy)
	assert.Empty(t, res.Errors)

	require.NotNil(t, res.Stages.Profile)
	assert.Equal(t, ArchetypeGrowthOriented, res.Stages.Profile.Archetype)
	require.NotNil(t, res.Stages.Risk)
	assert.Empty(t, res.Stages.Risk.BlockedPaths)

	require.Len(t, repo.saved, 1)
	assert.Equal(t, *rec, repo.saved[0])

	require.Len(t, sink.audits, 1)
	assert.Equal(t, "gs://audit/rec-1.json", res.AuditURI)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.CycleInvestment, pub.events[0].Cycle)
	assert.Equal(t, "rec-1", pub.events[0].RecordID)
	assert.Equal(t, "aggressive", pub.events[0].PrimaryPath)
}

func TestRun_FetchesProfileWindow(t *testing.T) {
	var since civil.Date
	reader := &mockTransactionReader{FetchFunc: func(_ context.Context, _ string, s civil.Date) ([]domain.TransactionRecord, error) {
		since = s
		return nil, nil
	}}

	res := newTestOrchestrator(reader, &memRecommendations{}).Run(context.Background(), "user-1")

	assert.Equal(t, civil.Date{Year: 2024, Month: time.December, Day: 20}, since)
	assert.Equal(t, domain.StatusInsufficientData, res.Status)
	assert.Nil(t, res.Recommendation)
	assert.Nil(t, res.Stages.Profile)
}

func TestRun_DeclaredGoalAndPriorProfile(t *testing.T) {
	goals := &mockGoalReader{FetchFunc: func(context.Context, string) (*domain.DeclaredGoal, error) {
		return &domain.DeclaredGoal{Kind: domain.GoalRetirement, TimelineYears: years(25)}, nil
	}}
	prior := &mockRiskProfileReader{profile: &domain.RiskProfile{Tolerance: domain.RiskMedium}}
	repo := &memRecommendations{}
	o := NewOrchestrator(staticReader(steadyHistory()), goals, repo, config.DefaultThresholds(), "₹",
		WithNow(func() time.Time { return runNow }), WithRiskProfiles(prior))

	res := o.Run(context.Background(), "user-1")

	require.Equal(t, domain.StatusSuccess, res.Status)
	assert.Equal(t, PathBalanced, res.Recommendation.PrimaryPath)
	assert.Equal(t, IntentWealthGrowth, res.Recommendation.PrimaryIntent)
	assert.Equal(t, []SpecialistKind{SpecialistEquity, SpecialistFund}, res.Stages.Routing.Specialists)
	require.Len(t, res.Stages.Advice, 2)
	assert.Equal(t, 10000.0, res.Stages.Advice[1].ContributionAmount())
	assert.Contains(t, res.Stages.Intent.Reasoning, "Primary goal 'retirement'")
}

func TestRun_GoalReaderFailureIsRecorded(t *testing.T) {
	goals := &mockGoalReader{FetchFunc: func(context.Context, string) (*domain.DeclaredGoal, error) {
		return nil, errors.New("preferences table missing")
	}}
	o := NewOrchestrator(staticReader(steadyHistory()), goals, &memRecommendations{}, config.DefaultThresholds(), "₹")

	res := o.Run(context.Background(), "user-1")

	assert.Equal(t, domain.StatusSuccess, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "preferences table missing")
}

func TestRun_FailingSpecialistUsesDefault(t *testing.T) {
	th := config.DefaultThresholds()
	failing := NewModelSpecialist(SpecialistEquity, &stubInvoker{InvokeFunc: func(context.Context, string, any) (map[string]any, error) {
		return nil, errors.New("model unavailable")
	}}, nil)
	registry := NewRegistry(failing, NewFundSpecialist(th))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	prior := &mockRiskProfileReader{profile: &domain.RiskProfile{Tolerance: domain.RiskMedium}}

	o := newTestOrchestrator(staticReader(steadyHistory()), &memRecommendations{},
		WithRegistry(registry), WithRiskProfiles(prior), WithCollectors(m))
	res := o.Run(context.Background(), "user-1")

	require.Equal(t, domain.StatusSuccess, res.Status)
	require.Len(t, res.Stages.Advice, 2)
	assert.Equal(t, SourceDefault, res.Stages.Advice[0].Source)
	assert.Equal(t, EquityConservativeIndex, res.Stages.Advice[0].Strategy)
	assert.Equal(t, SourceRules, res.Stages.Advice[1].Source)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "model unavailable")
	assert.Equal(t, res.Errors, res.Recommendation.Errors)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpecialistFallbacks.WithLabelValues("equity")))
}

func TestRun_PanickingSpecialistUsesDefault(t *testing.T) {
	th := config.DefaultThresholds()
	panicking := NewModelSpecialist(SpecialistEquity, &stubInvoker{InvokeFunc: func(context.Context, string, any) (map[string]any, error) {
		panic("nil response")
	}}, nil)
	registry := NewRegistry(panicking, NewFundSpecialist(th))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	repo := &memRecommendations{}
	prior := &mockRiskProfileReader{profile: &domain.RiskProfile{Tolerance: domain.RiskMedium}}

	o := newTestOrchestrator(staticReader(steadyHistory()), repo,
		WithRegistry(registry), WithRiskProfiles(prior), WithCollectors(m))
	res := o.Run(context.Background(), "user-1")

	require.Equal(t, domain.StatusSuccess, res.Status, res.Message)
	require.Len(t, res.Stages.Advice, 2)
	assert.Equal(t, SpecialistEquity, res.Stages.Advice[0].Kind)
	assert.Equal(t, SourceDefault, res.Stages.Advice[0].Source)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "equity specialist")
	assert.Len(t, repo.saved, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SpecialistFallbacks.WithLabelValues("equity")))
}

func TestRun_WindowUsesUTCCalendar(t *testing.T) {
	// 01:00 on the 20th in India is still the 19th in UTC.
	ist := time.FixedZone("IST", 5*3600+1800)
	var since civil.Date
	reader := &mockTransactionReader{FetchFunc: func(_ context.Context, _ string, s civil.Date) ([]domain.TransactionRecord, error) {
		since = s
		return nil, nil
	}}
	o := NewOrchestrator(reader, nil, &memRecommendations{}, config.DefaultThresholds(), "₹",
		WithNow(func() time.Time { return time.Date(2025, time.March, 20, 1, 0, 0, 0, ist) }))

	o.Run(context.Background(), "user-1")

	assert.Equal(t, civil.Date{Year: 2024, Month: time.December, Day: 19}, since)
}

func TestRun_RiskGateOverridesUnsafeSelection(t *testing.T) {
	// High tolerance from a prior assessment, but thin and volatile income.
	txs := []domain.TransactionRecord{
		income(day(2025, 1, 1), 10000),
		expense(day(2025, 1, 3), 9000, "Rent"),
		income(day(2025, 2, 1), 40000),
		expense(day(2025, 2, 3), 33000, "Rent"),
	}
	prior := &mockRiskProfileReader{profile: &domain.RiskProfile{Tolerance: domain.RiskHigh}}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	o := newTestOrchestrator(staticReader(txs), &memRecommendations{}, WithRiskProfiles(prior), WithCollectors(m))
	res := o.Run(context.Background(), "user-1")

	require.Equal(t, domain.StatusSuccess, res.Status)
	// surplus 4000 puts the subject on the beginner path, which is never blocked
	assert.Equal(t, []Path{PathBeginner}, res.Stages.Routing.Paths)
	assert.Equal(t, []Path{PathAggressive, PathBalanced}, res.Stages.Risk.BlockedPaths)
	assert.Equal(t, PathBeginner, res.Recommendation.PrimaryPath)
	assert.True(t, res.Recommendation.SafetyOverride)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlockedPaths.WithLabelValues("aggressive")))
}

func TestRun_PersistFailureIsError(t *testing.T) {
	repo := &memRecommendations{saveErr: errors.New("disk full")}
	sink := &recordingSink{}

	res := newTestOrchestrator(staticReader(steadyHistory()), repo, WithAuditSink(sink)).Run(context.Background(), "user-1")

	assert.Equal(t, domain.StatusError, res.Status)
	assert.Equal(t, "investment run failed during persist", res.Message)
	assert.NotContains(t, res.Message, "disk full")
	assert.Nil(t, res.Recommendation)
	assert.Empty(t, sink.audits)
}

func TestRun_AuditFailureIsNotFatal(t *testing.T) {
	repo := &memRecommendations{}
	sink := &recordingSink{err: errors.New("bucket not found")}

	res := newTestOrchestrator(staticReader(steadyHistory()), repo, WithAuditSink(sink)).Run(context.Background(), "user-1")

	assert.Equal(t, domain.StatusSuccess, res.Status)
	assert.Len(t, repo.saved, 1)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "bucket not found")
	assert.Empty(t, res.AuditURI)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	reader := &mockTransactionReader{FetchFunc: func(context.Context, string, civil.Date) ([]domain.TransactionRecord, error) {
		panic("index out of range")
	}}

	var res *Result
	require.NotPanics(t, func() {
		res = newTestOrchestrator(reader, &memRecommendations{}).Run(context.Background(), "user-1")
	})
	assert.Equal(t, domain.StatusError, res.Status)
	assert.NotContains(t, res.Message, "index out of range")
}

func TestLatestAndHistory(t *testing.T) {
	repo := &memRecommendations{}
	o := newTestOrchestrator(staticReader(steadyHistory()), repo)
	o.Run(context.Background(), "user-1")
	o.Run(context.Background(), "user-1")

	latest, err := o.Latest(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "rec-2", latest.RecommendationID)

	hist, err := o.History(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "rec-2", hist[0].RecommendationID)

	none, err := o.Latest(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.Nil(t, none)
}
