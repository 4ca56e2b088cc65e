// Package store selects the persistence backend and exposes it behind one
// interface that covers every repository the cycles and adapters use.
package store

import (
	"context"
	"fmt"

	"github.com/dvloznov/fiscal-pilot/internal/config"
	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/infra/bigquery"
	"github.com/dvloznov/fiscal-pilot/internal/infra/sqlite"
	"github.com/dvloznov/fiscal-pilot/internal/investment"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
	"github.com/dvloznov/fiscal-pilot/internal/spending"
)

// TransactionWriter ingests normalized transactions.
type TransactionWriter interface {
	InsertTransactions(ctx context.Context, txs []domain.TransactionRecord) error
}

// PreferenceWriter stores a subject's declared goal and prior risk profile.
type PreferenceWriter interface {
	SaveDeclaredGoal(ctx context.Context, subjectID string, goal domain.DeclaredGoal) error
	SaveRiskProfile(ctx context.Context, subjectID string, p domain.RiskProfile) error
}

// Store is everything a backend provides.
type Store interface {
	spending.TransactionReader
	spending.ActionRepository
	investment.GoalReader
	investment.RiskProfileReader
	investment.RecommendationRepository
	TransactionWriter
	PreferenceWriter
	Close() error
}

var (
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*bigquery.Store)(nil)
)

// Open connects to the backend named by cfg.Backend.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	log := logger.FromContext(ctx)
	switch cfg.Backend {
	case config.BackendSQLite:
		s, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		log.Info().Str("backend", cfg.Backend).Str("path", cfg.SQLitePath).Msg("Store opened")
		return s, nil
	case config.BackendBigQuery:
		s, err := bigquery.New(ctx, cfg.ProjectID, cfg.DatasetID)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		log.Info().
			Str("backend", cfg.Backend).
			Str("project", cfg.ProjectID).
			Str("dataset", cfg.DatasetID).
			Msg("Store opened")
		return s, nil
	default:
		return nil, fmt.Errorf("Open: unknown store backend %q", cfg.Backend)
	}
}
