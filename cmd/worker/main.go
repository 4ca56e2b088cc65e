package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/fiscal-pilot/internal/app"
	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/jobs"
	"github.com/dvloznov/fiscal-pilot/internal/jobs/inmemory"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("FISCAL_PILOT_CONFIG"), "Path to YAML config (optional)")
		subjects   = flag.String("enqueue", "", "Comma-separated subject IDs to enqueue at startup")
		cycle      = flag.String("cycle", string(jobs.JobTypeSpending), "Cycle to enqueue: spending or investment")
		interval   = flag.Duration("interval", 0, "Re-enqueue the subjects at this interval (0 disables)")
	)
	flag.Parse()

	log := logger.New()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	jobType, err := jobs.ParseJobType(*cycle)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid --cycle")
	}

	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	jobStore := inmemory.NewStore()
	jobQueue := a.NewQueue(jobStore)

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting worker service")
	if err := jobQueue.Start(ctx, a.CycleHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	var ids []string
	for _, s := range strings.Split(*subjects, ",") {
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, s)
		}
	}
	enqueue := func() {
		for _, id := range ids {
			job := &jobs.CycleJob{Type: jobType, SubjectID: id}
			if err := jobQueue.Publish(ctx, job); err != nil {
				log.Error().Err(err).Str("subject_id", id).Msg("Failed to enqueue cycle")
				continue
			}
			log.Info().Str("job_id", job.JobID).Str("subject_id", id).Str("type", string(jobType)).Msg("Cycle enqueued")
		}
	}
	enqueue()

	if *interval > 0 && len(ids) > 0 {
		go func() {
			ticker := time.NewTicker(*interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					enqueue()
				}
			}
		}()
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
