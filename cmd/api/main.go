package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/fiscal-pilot/internal/api/handlers"
	"github.com/dvloznov/fiscal-pilot/internal/api/middleware"
	"github.com/dvloznov/fiscal-pilot/internal/app"
	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/jobs/inmemory"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("FISCAL_PILOT_CONFIG"), "Path to YAML config (optional)")
		port       = flag.String("port", "", "HTTP server port (overrides config)")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log = logger.NewWithConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if *port != "" {
		cfg.Server.Port = *port
	}

	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer a.Close()

	// Queued cycles run in-process alongside the API.
	jobStore := inmemory.NewStore()
	jobQueue := a.NewQueue(jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, a.CycleHandler()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	mux := handlers.Routes(
		handlers.NewAgentHandler(a.Agent, cfg.CurrencySymbol, log),
		handlers.NewInvestmentHandler(a.Investment, log),
		handlers.NewJobsHandler(jobQueue, jobStore, log),
		a.MetricsHandler(),
	)

	handler := middleware.Chain(mux,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.Auth,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      http.TimeoutHandler(handler, cfg.Server.RequestTimeout, `{"error":"request timed out"}`),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("store", cfg.Store.Backend).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	cancelWorker()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
