package investment

import (
	"context"
	"errors"
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
)

// TransactionReader loads a subject's transactions on or after since.
type TransactionReader interface {
	FetchTransactions(ctx context.Context, subjectID string, since civil.Date) ([]domain.TransactionRecord, error)
}

// GoalReader returns the subject's declared goal, or nil when none.
type GoalReader interface {
	FetchDeclaredGoal(ctx context.Context, subjectID string) (*domain.DeclaredGoal, error)
}

// RiskProfileReader returns a prior risk assessment, or nil when none.
type RiskProfileReader interface {
	FetchRiskProfile(ctx context.Context, subjectID string) (*domain.RiskProfile, error)
}

// RecommendationRepository stores recommendations. Writes are insert-only.
type RecommendationRepository interface {
	SaveRecommendation(ctx context.Context, rec Recommendation) error
	LatestRecommendation(ctx context.Context, subjectID string) (*Recommendation, error)
	RecommendationHistory(ctx context.Context, subjectID string, limit int) ([]Recommendation, error)
}

// Audit is the full record of a run written to the audit sink.
type Audit struct {
	Recommendation Recommendation `json:"recommendation"`
	Stages         StageOutputs   `json:"stages"`
	ExportedAt     time.Time      `json:"exported_at"`
}

// AuditSink archives audits and returns where each was written.
type AuditSink interface {
	ExportAudit(ctx context.Context, a Audit) (string, error)
}

// StageOutputs holds the output of every stage that ran.
type StageOutputs struct {
	Profile *Profile        `json:"profile,omitempty"`
	Intent  *IntentResult   `json:"intent,omitempty"`
	Routing *Routing        `json:"routing,omitempty"`
	Advice  []Advice        `json:"specialists,omitempty"`
	Risk    *RiskAssessment `json:"risk,omitempty"`
}

// Result is what an investment run reports to its caller.
type Result struct {
	SubjectID      string             `json:"subject_id"`
	Status         domain.CycleStatus `json:"status"`
	Message        string             `json:"message,omitempty"`
	Recommendation *Recommendation    `json:"recommendation,omitempty"`
	Stages         StageOutputs       `json:"stages"`
	Errors         []string           `json:"errors,omitempty"`
	AuditURI       string             `json:"audit_uri,omitempty"`
	StartedAt      time.Time          `json:"started_at"`
	CompletedAt    time.Time          `json:"completed_at"`
}

type runState struct {
	subjectID string
	now       time.Time
	txs       []domain.TransactionRecord
	goal      *domain.DeclaredGoal
	prior     *domain.RiskProfile
	profile   Profile
	intent    IntentResult
	routing   Routing
	advice    []Advice
	risk      RiskAssessment
	rec       *Recommendation
	stages    StageOutputs
	errors    []string
	status    domain.CycleStatus
	message   string
}

// Orchestrator runs the investment pipeline for one subject at a time.
type Orchestrator struct {
	transactions TransactionReader
	goals        GoalReader
	riskProfiles RiskProfileReader
	recs         RecommendationRepository
	registry     *Registry
	profiler     *Profiler
	classifier   *IntentClassifier
	router       *Router
	gate         *RiskGate
	consensus    *ConsensusResolver
	thresholds   config.Thresholds
	audit        AuditSink
	events       events.Publisher
	metrics      *metrics.Collectors
	now          func() time.Time
	newID        func() string
	pipeline     *pipeline.Pipeline[runState]
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRegistry replaces the rule-based specialist registry.
func WithRegistry(r *Registry) OrchestratorOption {
	return func(o *Orchestrator) { o.registry = r }
}

// WithRiskProfiles supplies prior risk assessments.
func WithRiskProfiles(r RiskProfileReader) OrchestratorOption {
	return func(o *Orchestrator) { o.riskProfiles = r }
}

// WithAuditSink exports each persisted recommendation.
func WithAuditSink(s AuditSink) OrchestratorOption {
	return func(o *Orchestrator) { o.audit = s }
}

// WithPublisher publishes a completion event after each run.
func WithPublisher(p events.Publisher) OrchestratorOption {
	return func(o *Orchestrator) { o.events = p }
}

// WithCollectors records run metrics.
func WithCollectors(m *metrics.Collectors) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithNow overrides the wall clock.
func WithNow(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDs overrides recommendation id generation.
func WithIDs(gen func() string) OrchestratorOption {
	return func(o *Orchestrator) { o.newID = gen }
}

// NewOrchestrator creates an Orchestrator. goals may be nil.
func NewOrchestrator(txs TransactionReader, goals GoalReader, recs RecommendationRepository, th config.Thresholds, currency string, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		transactions: txs,
		goals:        goals,
		recs:         recs,
		thresholds:   th,
		profiler:     NewProfiler(th),
		classifier:   NewIntentClassifier(th),
		gate:         NewRiskGate(th),
		consensus:    NewConsensusResolver(currency),
		events:       events.Nop{},
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = NewRuleRegistry(th)
	}
	o.router = NewRouter(th, o.registry)

	o.pipeline = pipeline.New[runState](
		pipeline.StepFunc[runState]{StepName: "gather", Fn: o.gather},
		pipeline.StepFunc[runState]{StepName: StageProfiler, Fn: o.profile},
		pipeline.StepFunc[runState]{StepName: StageIntent, Fn: o.classify},
		pipeline.StepFunc[runState]{StepName: StageRouter, Fn: o.route},
		pipeline.StepFunc[runState]{StepName: "specialists", Fn: o.specialize},
		pipeline.StepFunc[runState]{StepName: StageRiskGate, Fn: o.assess},
		pipeline.StepFunc[runState]{StepName: StageConsensus, Fn: o.resolve},
		pipeline.StepFunc[runState]{StepName: "persist", Fn: o.persist},
	)
	return o
}

// Run executes the investment pipeline for subjectID. Like the spending
// cycle it never returns a Go error; failures surface as StatusError.
func (o *Orchestrator) Run(ctx context.Context, subjectID string) (result *Result) {
	ctx, log := logger.ForSubject(ctx, subjectID, events.CycleInvestment)
	started := o.now()
	state := &runState{subjectID: subjectID, now: started, status: domain.StatusSuccess}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Investment run panicked")
			state.status = domain.StatusError
			state.message = "internal error during investment run"
			state.rec = nil
		}
		result = o.finish(ctx, state, started)
	}()

	log.Info().Msg("Starting investment run")
	if err := o.pipeline.Execute(ctx, state); err != nil {
		log.Error().Err(err).Msg("Investment run failed")
		state.status = domain.StatusError
		state.message = failureMessage(err)
		state.rec = nil
	}
	return result
}

// Latest returns the newest recommendation for subjectID, or nil.
func (o *Orchestrator) Latest(ctx context.Context, subjectID string) (*Recommendation, error) {
	rec, err := o.recs.LatestRecommendation(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("Latest: %w", err)
	}
	return rec, nil
}

// History returns up to limit recommendations, newest first.
func (o *Orchestrator) History(ctx context.Context, subjectID string, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	recs, err := o.recs.RecommendationHistory(ctx, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("History: %w", err)
	}
	return recs, nil
}

func (o *Orchestrator) finish(ctx context.Context, s *runState, started time.Time) *Result {
	log := logger.FromContext(ctx)
	res := &Result{
		SubjectID:      s.subjectID,
		Status:         s.status,
		Message:        s.message,
		Recommendation: s.rec,
		Stages:         s.stages,
		Errors:         s.errors,
		StartedAt:      started,
		CompletedAt:    o.now(),
	}

	if s.status == domain.StatusSuccess && s.rec != nil && o.audit != nil {
		uri, err := o.audit.ExportAudit(ctx, Audit{Recommendation: *s.rec, Stages: s.stages, ExportedAt: res.CompletedAt})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to export recommendation audit")
			res.Errors = append(res.Errors, fmt.Sprintf("export audit: %v", err))
		} else {
			res.AuditURI = uri
		}
	}

	o.metrics.ObserveCycle(events.CycleInvestment, string(res.Status), res.CompletedAt.Sub(started))

	evt := events.Event{
		Cycle:      events.CycleInvestment,
		SubjectID:  s.subjectID,
		Status:     string(res.Status),
		OccurredAt: res.CompletedAt,
	}
	if s.rec != nil {
		evt.RecordID = s.rec.RecommendationID
		evt.PrimaryPath = string(s.rec.PrimaryPath)
		evt.Override = s.rec.SafetyOverride
	}
	if err := o.events.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Msg("Failed to publish investment event")
	}

	ev := log.Info().Str("status", string(res.Status)).Int("errors", len(res.Errors))
	if s.rec != nil {
		ev = ev.Str("primary_path", string(s.rec.PrimaryPath)).Bool("safety_override", s.rec.SafetyOverride)
	}
	ev.Msg("Investment run completed")
	return res
}

func (o *Orchestrator) gather(ctx context.Context, s *runState) error {
	log := logger.FromContext(ctx)
	since := civil.DateOf(s.now.UTC()).AddDays(-o.thresholds.Investment.ProfileWindowDays)

	txs, err := o.transactions.FetchTransactions(ctx, s.subjectID, since)
	if err != nil {
		return fmt.Errorf("gather: fetch transactions: %w", err)
	}
	if len(txs) == 0 {
		s.status = domain.StatusInsufficientData
		s.message = "No transaction history available for investment analysis"
		return pipeline.ErrHalt
	}
	s.txs = txs

	if o.goals != nil {
		goal, err := o.goals.FetchDeclaredGoal(ctx, s.subjectID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load declared goal, continuing without it")
			s.errors = append(s.errors, fmt.Sprintf("load goal: %v", err))
		} else {
			s.goal = goal
		}
	}
	if o.riskProfiles != nil {
		prior, err := o.riskProfiles.FetchRiskProfile(ctx, s.subjectID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load risk profile, deriving tolerance")
			s.errors = append(s.errors, fmt.Sprintf("load risk profile: %v", err))
		} else {
			s.prior = prior
		}
	}
	log.Debug().Int("transactions", len(txs)).Bool("goal", s.goal != nil).Msg("Gathered inputs")
	return nil
}

func (o *Orchestrator) profile(ctx context.Context, s *runState) error {
	s.profile = o.profiler.Build(s.subjectID, s.txs, s.goal, s.prior)
	s.stages.Profile = &s.profile
	log := logger.FromContext(ctx)
	log.Debug().
		Str("archetype", string(s.profile.Archetype)).
		Str("stability", string(s.profile.Stability)).
		Float64("surplus", s.profile.MonthlySurplus).
		Msg("Built investor profile")
	return nil
}

func (o *Orchestrator) classify(_ context.Context, s *runState) error {
	s.intent = o.classifier.Classify(s.profile)
	s.stages.Intent = &s.intent
	return nil
}

func (o *Orchestrator) route(ctx context.Context, s *runState) error {
	s.routing = o.router.Route(s.profile, s.intent)
	s.stages.Routing = &s.routing
	log := logger.FromContext(ctx)
	log.Debug().
		Interface("paths", s.routing.Paths).
		Interface("stages", s.routing.Stages).
		Msg("Routed")
	return nil
}

// specialize runs every routed specialist. A failing or missing specialist
// is replaced by its documented default and recorded as an error.
func (o *Orchestrator) specialize(ctx context.Context, s *runState) error {
	log := logger.FromContext(ctx)
	in := Input{Profile: s.profile, Intent: s.intent, Routing: s.routing}

	for _, kind := range s.routing.Specialists {
		spec, ok := o.registry.Get(kind)
		if !ok {
			s.fallback(kind, errors.New("no implementation registered"), o.thresholds.Confidence)
			o.metrics.SpecialistFallback(string(kind))
			continue
		}
		advice, err := safeAdvise(ctx, spec, in)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("specialize: %s: %w", kind, ctx.Err())
			}
			log.Warn().Err(err).Str("specialist", string(kind)).Msg("Specialist failed, using default advice")
			s.fallback(kind, err, o.thresholds.Confidence)
			o.metrics.SpecialistFallback(string(kind))
			continue
		}
		advice.Kind = kind
		s.advice = append(s.advice, advice)
	}
	s.stages.Advice = s.advice
	return nil
}

// safeAdvise turns a specialist panic into an error so the stage falls back
// to its default instead of ending the run.
func safeAdvise(ctx context.Context, spec Specialist, in Input) (advice Advice, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("specialist panicked: %v", r)
		}
	}()
	return spec.Advise(ctx, in)
}

func (s *runState) fallback(kind SpecialistKind, err error, conf config.ConfidenceScores) {
	s.advice = append(s.advice, DefaultAdvice(kind, conf))
	s.errors = append(s.errors, fmt.Sprintf("%s specialist: %v", kind, err))
}

func (o *Orchestrator) assess(_ context.Context, s *runState) error {
	s.risk = o.gate.Assess(s.profile, s.routing)
	s.stages.Risk = &s.risk
	for _, p := range s.risk.BlockedPaths {
		o.metrics.PathBlocked(string(p))
	}
	return nil
}

func (o *Orchestrator) resolve(_ context.Context, s *runState) error {
	rec := o.consensus.Resolve(ConsensusInput{
		Profile: s.profile,
		Intent:  s.intent,
		Routing: s.routing,
		Advice:  s.advice,
		Risk:    s.risk,
	})
	rec.RecommendationID = o.newID()
	rec.CreatedAt = s.now.UTC()
	rec.UpdatedAt = rec.CreatedAt
	if len(s.errors) > 0 {
		rec.Errors = append([]string(nil), s.errors...)
	}
	s.rec = &rec
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, s *runState) error {
	if err := o.recs.SaveRecommendation(ctx, *s.rec); err != nil {
		return fmt.Errorf("persist: save recommendation: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("recommendation_id", s.rec.RecommendationID).Msg("Recommendation saved")
	return nil
}

// failureMessage names the failing stage only. Collaborator error text stays
// in the log.
func failureMessage(err error) string {
	if step := pipeline.FailedStep(err); step != "" {
		return "investment run failed during " + step
	}
	return "investment run failed"
}
