package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

const actionColumns = `action_id, subject_id, kind, message, reasoning, category, amount,
		       trigger_kind, resolved, resolved_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// InsertAction stores one action in its own commit.
func (s *Store) InsertAction(ctx context.Context, a domain.PersistedAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var resolvedAt sql.NullString
	if a.ResolvedAt != nil {
		resolvedAt = sql.NullString{String: formatTime(*a.ResolvedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_actions
		(action_id, subject_id, kind, message, reasoning, category, amount,
		 trigger_kind, resolved, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ActionID,
		a.SubjectID,
		string(a.Kind),
		a.Message,
		a.Reasoning,
		nullString(a.Category),
		nullFloat(a.Amount),
		string(a.Trigger),
		boolInt(a.Resolved),
		resolvedAt,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("InsertAction: %w", err)
	}
	return nil
}

// GetAction returns nil when the action does not exist for the subject.
func (s *Store) GetAction(ctx context.Context, subjectID, actionID string) (*domain.PersistedAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+`
		FROM agent_actions
		WHERE subject_id = ? AND action_id = ?
	`, subjectID, actionID)
	a, err := scanAction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetAction: %w", err)
	}
	return a, nil
}

// MarkActionResolved sets resolved and resolved_at once. It reports whether
// a row changed; an already resolved action keeps its original timestamp.
func (s *Store) MarkActionResolved(ctx context.Context, subjectID, actionID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE agent_actions
		SET resolved = 1, resolved_at = ?
		WHERE subject_id = ? AND action_id = ? AND resolved = 0
	`, formatTime(at), subjectID, actionID)
	if err != nil {
		return false, fmt.Errorf("MarkActionResolved: update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkActionResolved: rows affected: %w", err)
	}
	return n > 0, nil
}

// ListActions returns a subject's actions, newest first.
func (s *Store) ListActions(ctx context.Context, subjectID string, filter domain.ActionFilter) ([]domain.PersistedAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var q strings.Builder
	q.WriteString(`SELECT ` + actionColumns + ` FROM agent_actions WHERE subject_id = ?`)
	args := []any{subjectID}
	if filter.UnresolvedOnly {
		q.WriteString(` AND resolved = 0`)
	}
	q.WriteString(` ORDER BY created_at DESC, rowid DESC`)
	if filter.Limit > 0 {
		q.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("ListActions: query: %w", err)
	}
	defer rows.Close()

	out := []domain.PersistedAction{}
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActions: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActions: rows: %w", err)
	}
	return out, nil
}

func scanAction(r rowScanner) (*domain.PersistedAction, error) {
	var (
		a                   domain.PersistedAction
		kind, trigger       string
		category            sql.NullString
		amount              sql.NullFloat64
		resolved            int
		resolvedAt, created sql.NullString
	)
	if err := r.Scan(
		&a.ActionID, &a.SubjectID, &kind, &a.Message, &a.Reasoning, &category, &amount,
		&trigger, &resolved, &resolvedAt, &created,
	); err != nil {
		return nil, err
	}
	a.Kind = domain.ActionKind(kind)
	a.Trigger = domain.FindingKind(trigger)
	a.Category = category.String
	a.Amount = floatPtr(amount)
	a.Resolved = resolved != 0
	if resolvedAt.Valid {
		t, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse resolved_at: %w", err)
		}
		a.ResolvedAt = &t
	}
	t, err := parseTime(created.String)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	a.CreatedAt = t
	return &a, nil
}
