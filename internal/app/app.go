// Package app assembles the store, cycles and adapters from configuration.
// Every command builds its dependencies through New.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/events"
	"github.com/dvloznov/fiscal-pilot/internal/export"
	"github.com/dvloznov/fiscal-pilot/internal/investment"
	"github.com/dvloznov/fiscal-pilot/internal/jobs"
	"github.com/dvloznov/fiscal-pilot/internal/jobs/inmemory"
	"github.com/dvloznov/fiscal-pilot/internal/llm"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
	"github.com/dvloznov/fiscal-pilot/internal/metrics"
	"github.com/dvloznov/fiscal-pilot/internal/spending"
	"github.com/dvloznov/fiscal-pilot/internal/store"
)

// App holds the wired components. Optional adapters are nil when disabled.
type App struct {
	Config     *config.Config
	Log        zerolog.Logger
	Store      store.Store
	Agent      *spending.Agent
	Investment *investment.Orchestrator
	Metrics    *metrics.Collectors
	Registry   *prometheus.Registry
	Events     events.Publisher
	Audit      *export.Sink

	closers []func() error
}

// Option adjusts how New wires the application, mostly for tests.
type Option func(*options)

type options struct {
	store store.Store
}

// WithStore uses s instead of opening the configured backend.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// New opens the configured backend and connects the optional adapters.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx = logger.WithContext(ctx, log)
	a := &App{Config: cfg, Log: log, Events: events.Nop{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	if o.store != nil {
		a.Store = o.store
	} else {
		s, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Store = s
		a.closers = append(a.closers, s.Close)
	}

	if cfg.Events.URL != "" {
		pub, err := events.Connect(cfg.Events.URL, cfg.Events.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Events = pub
		a.closers = append(a.closers, pub.Close)
		log.Info().Str("url", cfg.Events.URL).Msg("Publishing cycle events to NATS")
	}

	if cfg.Export.Bucket != "" {
		objects, err := export.NewGCSObjects(ctx)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		a.closers = append(a.closers, objects.Close)
		a.Audit = export.NewSink(objects, cfg.Export.Bucket, cfg.Export.Prefix)
		log.Info().Str("bucket", cfg.Export.Bucket).Msg("Exporting recommendation audits to GCS")
	}

	registry := investment.NewRuleRegistry(cfg.Thresholds)
	if cfg.Model.Enabled {
		client, err := llm.NewClient(ctx, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("New: %w", err)
		}
		fund := investment.NewFundSpecialist(cfg.Thresholds)
		registry.Register(investment.NewModelSpecialist(investment.SpecialistEquity, client, fund))
		registry.Register(investment.NewModelSpecialist(investment.SpecialistFund, client, fund))
		log.Info().Str("model", cfg.Model.Name).Msg("Model-backed specialists enabled")
	}

	a.Agent = spending.NewAgent(a.Store, a.Store, cfg.Thresholds.Spending, cfg.CurrencySymbol,
		spending.WithMetrics(a.Metrics),
		spending.WithEvents(a.Events),
	)

	invOpts := []investment.OrchestratorOption{
		investment.WithRegistry(registry),
		investment.WithRiskProfiles(a.Store),
		investment.WithCollectors(a.Metrics),
		investment.WithPublisher(a.Events),
	}
	if a.Audit != nil {
		invOpts = append(invOpts, investment.WithAuditSink(a.Audit))
	}
	a.Investment = investment.NewOrchestrator(a.Store, a.Store, a.Store, cfg.Thresholds, cfg.CurrencySymbol, invOpts...)

	return a, nil
}

// MetricsHandler serves the application's registry.
func (a *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{})
}

// CycleHandler runs queued jobs against this application's cycles.
func (a *App) CycleHandler() jobs.JobHandler {
	return jobs.NewCycleHandler(a.Agent, a.Investment)
}

// NewQueue creates a job queue sized from configuration.
func (a *App) NewQueue(jobStore jobs.JobStore) *inmemory.Queue {
	return inmemory.NewQueue(a.Config.Jobs.BufferSize, jobStore,
		inmemory.WithWorkers(a.Config.Jobs.Workers),
		inmemory.WithMaxRetries(a.Config.Jobs.MaxRetries),
	)
}

// Close releases adapters in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
