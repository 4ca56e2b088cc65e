// Package sqlite is the single-file persistence backend. It stores
// transactions, preferences, risk profiles, spending actions and investment
// recommendations in one SQLite database opened in WAL mode.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dvloznov/fiscal-pilot/internal/logger"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	transaction_id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	amount REAL NOT NULL,
	tx_date TEXT NOT NULL,
	tx_type TEXT NOT NULL,
	category TEXT,
	subscription INTEGER NOT NULL DEFAULT 0,
	installment INTEGER NOT NULL DEFAULT 0,
	discretionary INTEGER NOT NULL DEFAULT 0,
	recurring INTEGER NOT NULL DEFAULT 0,
	merchant TEXT,
	description TEXT,
	source TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_subject_date
	ON transactions(subject_id, tx_date);

CREATE TABLE IF NOT EXISTS user_preferences (
	subject_id TEXT PRIMARY KEY,
	goal_kind TEXT NOT NULL,
	goal_amount REAL,
	timeline_years REAL,
	asset_classes_json TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_profiles (
	subject_id TEXT PRIMARY KEY,
	tolerance TEXT NOT NULL,
	emergency_fund_months REAL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_actions (
	action_id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	reasoning TEXT NOT NULL,
	category TEXT,
	amount REAL,
	trigger_kind TEXT NOT NULL,
	resolved INTEGER NOT NULL DEFAULT 0,
	resolved_at TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_agent_actions_subject_created
	ON agent_actions(subject_id, created_at DESC);

CREATE TABLE IF NOT EXISTS investment_recommendations (
	recommendation_id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL,
	primary_path TEXT NOT NULL,
	confidence REAL NOT NULL,
	safety_override INTEGER NOT NULL DEFAULT 0,
	payload_json TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendations_subject_created
	ON investment_recommendations(subject_id, created_at DESC);
`

// Store implements every repository the cycles need on top of SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func New(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("New: open database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("New: migrate: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Debug().Str("path", path).Msg("SQLite store ready")
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
