package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dvloznov/fiscal-pilot/internal/app"
	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the persistent flags shared by every subcommand.
type cli struct {
	configPath string
	subject    string
	jsonOut    bool
	logLevel   string
	timeout    time.Duration
}

func rootCmd() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:   "fiscal-pilot",
		Short: "Run spending and investment decision cycles",
		Long: `fiscal-pilot runs the spending agent and the investment advisor against
a subject's transaction history and manages the resulting actions and
recommendations.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", os.Getenv("FISCAL_PILOT_CONFIG"), "Config file path (YAML)")
	pf.StringVarP(&c.subject, "subject", "s", os.Getenv("FISCAL_PILOT_SUBJECT"), "Subject ID to operate on")
	pf.BoolVar(&c.jsonOut, "json", false, "Print results as JSON")
	pf.StringVar(&c.logLevel, "log-level", "", "Log level (overrides config)")
	pf.DurationVar(&c.timeout, "timeout", 5*time.Minute, "Overall command timeout")

	cmd.AddCommand(
		c.spendingCmd(),
		c.investCmd(),
		c.actionsCmd(),
		c.resolveCmd(),
		c.seedCmd(),
		c.syncNotionCmd(),
		c.auditCmd(),
	)
	return cmd
}

// setup loads configuration, builds the logger and wires the application.
// The returned cleanup must be called when the command finishes.
func (c *cli) setup(cmd *cobra.Command) (context.Context, *app.App, func(), error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	log := logger.NewWithConfig(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close application")
		}
		cancel()
	}
	return ctx, a, cleanup, nil
}

func (c *cli) requireSubject() error {
	if c.subject == "" {
		return fmt.Errorf("--subject is required")
	}
	return nil
}
