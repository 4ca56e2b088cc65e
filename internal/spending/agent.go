// Package spending runs the OBSERVE, ANALYZE, PLAN, ACT cycle over a
// subject's recent transactions and persists the resulting actions.
package spending

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/events"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
	"github.com/dvloznov/fiscal-pilot/internal/metrics"
	"github.com/dvloznov/fiscal-pilot/internal/pipeline"
	"github.com/dvloznov/fiscal-pilot/internal/rules"
	"github.com/dvloznov/fiscal-pilot/internal/signals"
)

// TransactionReader loads a subject's transactions on or after since.
type TransactionReader interface {
	FetchTransactions(ctx context.Context, subjectID string, since civil.Date) ([]domain.TransactionRecord, error)
}

// ActionRepository stores and resolves spending actions. Each InsertAction
// call is one atomic commit.
type ActionRepository interface {
	InsertAction(ctx context.Context, action domain.PersistedAction) error
	GetAction(ctx context.Context, subjectID, actionID string) (*domain.PersistedAction, error)
	MarkActionResolved(ctx context.Context, subjectID, actionID string, at time.Time) (bool, error)
	ListActions(ctx context.Context, subjectID string, filter domain.ActionFilter) ([]domain.PersistedAction, error)
}

// CycleResult is what a spending cycle reports to its caller.
type CycleResult struct {
	SubjectID    string                   `json:"subject_id"`
	Status       domain.CycleStatus       `json:"status"`
	Message      string                   `json:"message,omitempty"`
	Observations *signals.Snapshot        `json:"observations,omitempty"`
	Findings     []rules.Finding          `json:"findings"`
	Plan         []domain.PlannedAction   `json:"plan"`
	ActionsTaken []domain.PersistedAction `json:"actions_taken"`
	Errors       []string                 `json:"errors,omitempty"`
	StartedAt    time.Time                `json:"started_at"`
	CompletedAt  time.Time                `json:"completed_at"`
}

// ActionIDs returns the ids of the persisted actions.
func (r *CycleResult) ActionIDs() []string {
	ids := make([]string, len(r.ActionsTaken))
	for i, a := range r.ActionsTaken {
		ids[i] = a.ActionID
	}
	return ids
}

type cycleState struct {
	subjectID string
	now       time.Time
	snapshot  signals.Snapshot
	findings  []rules.Finding
	plan      []domain.PlannedAction
	taken     []domain.PersistedAction
	errors    []string
	status    domain.CycleStatus
	message   string
}

// Agent executes spending cycles for one subject at a time. It holds no
// per-subject state, so one Agent may serve concurrent cycles.
type Agent struct {
	transactions TransactionReader
	actions      ActionRepository
	evaluator    *rules.Evaluator
	planner      *Planner
	thresholds   config.SpendingThresholds
	events       events.Publisher
	metrics      *metrics.Collectors
	now          func() time.Time
	newID        func() string
	pipeline     *pipeline.Pipeline[cycleState]
}

// Option customizes an Agent.
type Option func(*Agent)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithIDGenerator overrides action id generation.
func WithIDGenerator(gen func() string) Option {
	return func(a *Agent) { a.newID = gen }
}

// WithMetrics records cycle metrics.
func WithMetrics(m *metrics.Collectors) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithEvents publishes a completion event after each cycle.
func WithEvents(p events.Publisher) Option {
	return func(a *Agent) { a.events = p }
}

// NewAgent creates an Agent.
func NewAgent(txs TransactionReader, actions ActionRepository, t config.SpendingThresholds, currency string, opts ...Option) *Agent {
	a := &Agent{
		transactions: txs,
		actions:      actions,
		evaluator:    rules.NewEvaluator(t),
		planner:      NewPlanner(t, currency),
		thresholds:   t,
		events:       events.Nop{},
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.pipeline = pipeline.New[cycleState](
		pipeline.StepFunc[cycleState]{StepName: "observe", Fn: a.observe},
		pipeline.StepFunc[cycleState]{StepName: "analyze", Fn: a.analyze},
		pipeline.StepFunc[cycleState]{StepName: "plan", Fn: a.plan},
		pipeline.StepFunc[cycleState]{StepName: "act", Fn: a.act},
	)
	return a
}

// RunCycle executes one full cycle for subjectID. It always returns a result
// with a terminal status; failures are reported as StatusError with a short
// message rather than as a Go error.
func (a *Agent) RunCycle(ctx context.Context, subjectID string) (result *CycleResult) {
	ctx, log := logger.ForSubject(ctx, subjectID, events.CycleSpending)
	started := a.now()
	state := &cycleState{subjectID: subjectID, now: started, status: domain.StatusSuccess}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Spending cycle panicked")
			state.status = domain.StatusError
			state.message = "internal error during spending cycle"
		}
		result = a.finish(ctx, state, started)
	}()

	log.Info().Msg("Starting spending cycle")
	if err := a.pipeline.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Spending cycle failed")
		state.status = domain.StatusError
		state.message = failureMessage("spending cycle", err)
	}
	return result
}

func (a *Agent) finish(ctx context.Context, s *cycleState, started time.Time) *CycleResult {
	log := logger.FromContext(ctx)
	res := &CycleResult{
		SubjectID:    s.subjectID,
		Status:       s.status,
		Message:      s.message,
		Findings:     s.findings,
		Plan:         s.plan,
		ActionsTaken: s.taken,
		Errors:       s.errors,
		StartedAt:    started,
		CompletedAt:  a.now(),
	}
	if s.status != domain.StatusError && s.snapshot.SubjectID != "" {
		snap := s.snapshot
		res.Observations = &snap
	}
	if res.ActionsTaken == nil {
		res.ActionsTaken = []domain.PersistedAction{}
	}

	a.metrics.ObserveCycle(events.CycleSpending, string(res.Status), res.CompletedAt.Sub(started))

	evt := events.Event{
		Cycle:       events.CycleSpending,
		SubjectID:   s.subjectID,
		Status:      string(res.Status),
		ActionCount: len(res.ActionsTaken),
		OccurredAt:  res.CompletedAt,
	}
	if err := a.events.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Msg("Failed to publish spending cycle event")
	}

	log.Info().
		Str("status", string(res.Status)).
		Int("findings", len(res.Findings)).
		Int("actions_taken", len(res.ActionsTaken)).
		Int("errors", len(res.Errors)).
		Msg("Spending cycle completed")
	return res
}

func (a *Agent) observe(ctx context.Context, s *cycleState) error {
	since := signals.ObservationStart(s.now, a.thresholds.WindowDays)
	txs, err := a.transactions.FetchTransactions(ctx, s.subjectID, since)
	if err != nil {
		return fmt.Errorf("observe: fetch transactions: %w", err)
	}

	s.snapshot = signals.Aggregate(s.subjectID, txs, s.now, a.thresholds.WindowDays)
	log := logger.FromContext(ctx)
	log.Debug().
		Int("transactions", len(txs)).
		Int("current_count", s.snapshot.CurrentCount).
		Float64("estimated_income", s.snapshot.EstimatedMonthlyIncome).
		Str("income_source", string(s.snapshot.IncomeSource)).
		Msg("Observed transactions")

	if !s.snapshot.HasCurrentActivity() {
		s.status = domain.StatusInsufficientData
		s.message = "Not enough transactions to analyze"
		return pipeline.ErrHalt
	}
	return nil
}

func (a *Agent) analyze(_ context.Context, s *cycleState) error {
	s.findings = a.evaluator.Evaluate(s.snapshot)
	return nil
}

func (a *Agent) plan(_ context.Context, s *cycleState) error {
	s.plan = a.planner.Plan(s.snapshot, s.findings)
	for i, p := range s.plan {
		if p.Reasoning == "" {
			return fmt.Errorf("plan: action %d (%s) has no reasoning", i, p.Kind)
		}
	}
	return nil
}

// act persists each planned action in its own commit and keeps going when
// one fails.
func (a *Agent) act(ctx context.Context, s *cycleState) error {
	log := logger.FromContext(ctx)
	for _, planned := range s.plan {
		action := domain.PersistedAction{
			ActionID:      a.newID(),
			SubjectID:     s.subjectID,
			PlannedAction: planned,
			CreatedAt:     a.now().UTC(),
		}
		if err := a.actions.InsertAction(ctx, action); err != nil {
			log.Warn().
				Err(err).
				Str("kind", string(planned.Kind)).
				Str("category", planned.Category).
				Msg("Failed to persist action, skipping")
			a.metrics.ActionFailed()
			s.errors = append(s.errors, fmt.Sprintf("persist %s action: %v", planned.Kind, err))
			continue
		}
		a.metrics.ActionPersisted(string(planned.Kind))
		s.taken = append(s.taken, action)
	}
	return nil
}

// ResolveAction acknowledges an action. It returns true when the action
// exists for the subject and is resolved after the call; a repeat call is a
// no-op that also returns true and keeps the original resolved_at. Unknown
// ids and store failures return false.
func (a *Agent) ResolveAction(ctx context.Context, actionID, subjectID string) bool {
	log := logger.FromContext(ctx).With().
		Str("action_id", actionID).
		Str("subject_id", subjectID).
		Logger()

	action, err := a.actions.GetAction(ctx, subjectID, actionID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load action")
		return false
	}
	if action == nil {
		log.Debug().Msg("Action not found")
		return false
	}
	if action.Resolved {
		return true
	}

	if _, err := a.actions.MarkActionResolved(ctx, subjectID, actionID, a.now().UTC()); err != nil {
		log.Error().Err(err).Msg("Failed to mark action resolved")
		return false
	}
	log.Info().Msg("Action resolved")
	return true
}

// RecentActions lists a subject's actions, newest first.
func (a *Agent) RecentActions(ctx context.Context, subjectID string, filter domain.ActionFilter) ([]domain.PersistedAction, error) {
	actions, err := a.actions.ListActions(ctx, subjectID, filter)
	if err != nil {
		return nil, fmt.Errorf("RecentActions: %w", err)
	}
	return actions, nil
}

// failureMessage names the failing step only. Collaborator error text stays
// in the log.
func failureMessage(cycle string, err error) string {
	if step := pipeline.FailedStep(err); step != "" {
		return fmt.Sprintf("%s failed during %s", cycle, step)
	}
	return cycle + " failed"
}
