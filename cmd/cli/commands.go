package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/investment"
	"github.com/dvloznov/fiscal-pilot/internal/money"
	"github.com/dvloznov/fiscal-pilot/internal/notionsync"
	"github.com/dvloznov/fiscal-pilot/internal/seed"
	"github.com/dvloznov/fiscal-pilot/internal/spending"
)

func (c *cli) spendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spending",
		Short: "Run one spending cycle and persist the resulting actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSubject(); err != nil {
				return err
			}
			ctx, a, cleanup, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			res := a.Agent.RunCycle(ctx, c.subject)
			if c.jsonOut {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printCycle(cmd.OutOrStdout(), res, a.Config.CurrencySymbol)
			if res.Status == domain.StatusError {
				return fmt.Errorf("spending cycle failed: %s", res.Message)
			}
			return nil
		},
	}
}

func (c *cli) investCmd() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "invest",
		Short: "Produce an investment recommendation",
		Long: `Runs the investment pipeline and stores the recommendation.
With --history N it lists the N most recent stored recommendations instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSubject(); err != nil {
				return err
			}
			ctx, a, cleanup, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			if history > 0 {
				recs, err := a.Investment.History(ctx, c.subject, history)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return printJSON(out, recs)
				}
				for _, r := range recs {
					fmt.Fprintf(out, "%s  %s  %-28s confidence %.2f\n",
						r.CreatedAt.Format("2006-01-02 15:04"), r.RecommendationID, r.PrimaryPathName, r.Confidence)
				}
				return nil
			}

			res := a.Investment.Run(ctx, c.subject)
			if c.jsonOut {
				return printJSON(out, res)
			}
			printRecommendation(out, res, a.Config.CurrencySymbol)
			if res.Status == domain.StatusError {
				return fmt.Errorf("investment run failed: %s", res.Message)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "List the N most recent recommendations instead of running")
	return cmd
}

func (c *cli) actionsCmd() *cobra.Command {
	var (
		unresolved bool
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List persisted spending actions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSubject(); err != nil {
				return err
			}
			ctx, a, cleanup, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			actions, err := a.Agent.RecentActions(ctx, c.subject, domain.ActionFilter{UnresolvedOnly: unresolved, Limit: limit})
			if err != nil {
				return err
			}
			if c.jsonOut {
				return printJSON(cmd.OutOrStdout(), actions)
			}
			printActions(cmd.OutOrStdout(), actions, a.Config.CurrencySymbol)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "Only show unresolved actions")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of actions (0 for all)")
	return cmd
}

func (c *cli) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve ACTION_ID",
		Short: "Mark an action as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSubject(); err != nil {
				return err
			}
			ctx, a, cleanup, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if !a.Agent.ResolveAction(ctx, args[0], c.subject) {
				return fmt.Errorf("action %s not found for subject %s", args[0], c.subject)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	var (
		days    int
		seedVal uint64
		endStr  string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a reproducible demo history and goal for the subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSubject(); err != nil {
				return err
			}
			opt := seed.Options{Days: days, Seed: seedVal}
			if endStr != "" {
				end, err := civil.ParseDate(endStr)
				if err != nil {
					return fmt.Errorf("invalid --end, expected YYYY-MM-DD: %w", err)
				}
				opt.End = end
			}

			ctx, a, cleanup, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := seed.Seed(ctx, a.Store, c.subject, opt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d transactions for %s\n", n, c.subject)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 90, "Days of history to generate")
	cmd.Flags().Uint64Var(&seedVal, "seed", 1, "Random seed")
	cmd.Flags().StringVar(&endStr, "end", "", "Last day of history (YYYY-MM-DD, default today)")
	return cmd
}

func (c *cli) syncNotionCmd() *cobra.Command {
	var (
		databaseID string
		dryRun     bool
	)
	cmd := &cobra.Command{
		Use:   "sync-notion",
		Short: "Mirror the subject's actions into a Notion database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSubject(); err != nil {
				return err
			}
			ctx, a, cleanup, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if databaseID == "" {
				databaseID = a.Config.Notion.ActionsDatabaseID
			}
			if databaseID == "" {
				return fmt.Errorf("--database-id or notion.actions_database_id is required")
			}
			token := a.Config.NotionToken()
			if token == "" {
				return fmt.Errorf("notion token not set in $%s", a.Config.Notion.TokenEnv)
			}

			stats, err := notionsync.SyncActions(ctx, a.Store, notionsync.NewNotionClient(token), databaseID, c.subject, dryRun)
			if err != nil {
				return err
			}
			if c.jsonOut {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d, unchanged %d, failed %d\n",
				stats.Created, stats.Updated, stats.Unchanged, stats.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseID, "database-id", "", "Notion database ID (overrides config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without writing to Notion")
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit GS_URI",
		Short: "Print an exported recommendation audit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, a, cleanup, err := c.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if a.Audit == nil {
				return fmt.Errorf("audit export is not configured (export.bucket)")
			}
			audit, err := a.Audit.ReadAudit(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), audit)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCycle(w io.Writer, res *spending.CycleResult, currency string) {
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	if res.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", res.Message)
	}
	if len(res.ActionsTaken) == 0 {
		fmt.Fprintln(w, "No actions taken.")
	} else {
		fmt.Fprintf(w, "Actions taken (%d):\n", len(res.ActionsTaken))
		printActions(w, res.ActionsTaken, currency)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
}

func printActions(w io.Writer, actions []domain.PersistedAction, currency string) {
	for _, a := range actions {
		mark := " "
		if a.Resolved {
			mark = "x"
		}
		line := fmt.Sprintf("  [%s] %s  %-18s %s", mark, a.ActionID, a.Kind, a.Message)
		if a.Amount != nil {
			line += "  (" + money.Format(currency, *a.Amount) + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func printRecommendation(w io.Writer, res *investment.Result, currency string) {
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	if res.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", res.Message)
	}
	rec := res.Recommendation
	if rec == nil {
		return
	}
	fmt.Fprintf(w, "Recommendation %s\n", rec.RecommendationID)
	fmt.Fprintf(w, "  Path:       %s (confidence %.2f)\n", rec.PrimaryPathName, rec.Confidence)
	fmt.Fprintf(w, "  Surplus:    %s / month\n", money.FormatWhole(currency, rec.StageReasoning.Profiler.MonthlySurplus))
	if rec.SafetyOverride {
		fmt.Fprintf(w, "  Safety:     %s\n", rec.SafetyReason)
	}
	for _, s := range rec.Suggestions {
		line := fmt.Sprintf("  - %s: %s", s.Type, s.Strategy)
		if s.MonthlyContribution != nil {
			line += ", " + money.FormatWhole(currency, *s.MonthlyContribution) + "/month"
		}
		if len(s.Focus) > 0 {
			line += " [" + strings.Join(s.Focus, ", ") + "]"
		}
		fmt.Fprintln(w, line)
	}
	for _, step := range rec.Steps {
		fmt.Fprintf(w, "  step: %s\n", step.Step)
	}
	for _, warn := range rec.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn.Warning)
	}
	if res.AuditURI != "" {
		fmt.Fprintf(w, "  Audit:      %s\n", res.AuditURI)
	}
}
