package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// InsertTransactions stores records in one commit. Records are sign
// normalized on the way in; an id that already exists is left untouched.
func (s *Store) InsertTransactions(ctx context.Context, txs []domain.TransactionRecord) error {
	if len(txs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("InsertTransactions: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions
		(transaction_id, subject_id, amount, tx_date, tx_type, category,
		 subscription, installment, discretionary, recurring,
		 merchant, description, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("InsertTransactions: prepare: %w", err)
	}
	defer stmt.Close()

	created := formatTime(s.now())
	for _, rec := range txs {
		rec = domain.NormalizeSign(rec)
		if _, err := stmt.ExecContext(ctx,
			rec.TransactionID,
			rec.SubjectID,
			rec.Amount,
			rec.Date.String(),
			string(rec.Type),
			nullString(rec.Category),
			boolInt(rec.Subscription),
			boolInt(rec.Installment),
			boolInt(rec.Discretionary),
			boolInt(rec.Recurring),
			nullString(rec.Merchant),
			nullString(rec.Description),
			nullString(rec.Source),
			created,
		); err != nil {
			return fmt.Errorf("InsertTransactions: insert %s: %w", rec.TransactionID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("InsertTransactions: commit: %w", err)
	}
	return nil
}

// FetchTransactions returns a subject's transactions dated on or after
// since, oldest first.
func (s *Store) FetchTransactions(ctx context.Context, subjectID string, since civil.Date) ([]domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, subject_id, amount, tx_date, tx_type, category,
		       subscription, installment, discretionary, recurring,
		       merchant, description, source
		FROM transactions
		WHERE subject_id = ? AND tx_date >= ?
		ORDER BY tx_date ASC, created_at ASC, transaction_id ASC
	`, subjectID, since.String())
	if err != nil {
		return nil, fmt.Errorf("FetchTransactions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TransactionRecord
	for rows.Next() {
		var (
			rec                                   domain.TransactionRecord
			date, txType                          string
			category, merchant, description, src  sql.NullString
			subscription, installment, disc, recu int
		)
		if err := rows.Scan(
			&rec.TransactionID, &rec.SubjectID, &rec.Amount, &date, &txType, &category,
			&subscription, &installment, &disc, &recu,
			&merchant, &description, &src,
		); err != nil {
			return nil, fmt.Errorf("FetchTransactions: scan: %w", err)
		}
		if rec.Date, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("FetchTransactions: parse date %q: %w", date, err)
		}
		rec.Type = domain.ParseTxType(txType)
		rec.Category = category.String
		rec.Subscription = subscription != 0
		rec.Installment = installment != 0
		rec.Discretionary = disc != 0
		rec.Recurring = recu != 0
		rec.Merchant = merchant.String
		rec.Description = description.String
		rec.Source = src.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("FetchTransactions: rows: %w", err)
	}
	return out, nil
}

// SaveDeclaredGoal replaces the subject's declared goal.
func (s *Store) SaveDeclaredGoal(ctx context.Context, subjectID string, goal domain.DeclaredGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	classes, err := json.Marshal(goal.InterestedAssetClasses)
	if err != nil {
		return fmt.Errorf("SaveDeclaredGoal: marshal asset classes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_preferences
		(subject_id, goal_kind, goal_amount, timeline_years, asset_classes_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			goal_kind = excluded.goal_kind,
			goal_amount = excluded.goal_amount,
			timeline_years = excluded.timeline_years,
			asset_classes_json = excluded.asset_classes_json,
			updated_at = excluded.updated_at
	`,
		subjectID,
		string(goal.Kind),
		nullFloat(goal.Amount),
		nullFloat(goal.TimelineYears),
		string(classes),
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("SaveDeclaredGoal: upsert: %w", err)
	}
	return nil
}

// FetchDeclaredGoal returns nil when the subject has no preferences.
func (s *Store) FetchDeclaredGoal(ctx context.Context, subjectID string) (*domain.DeclaredGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		goal     domain.DeclaredGoal
		kind     string
		amount   sql.NullFloat64
		timeline sql.NullFloat64
		classes  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT goal_kind, goal_amount, timeline_years, asset_classes_json
		FROM user_preferences
		WHERE subject_id = ?
	`, subjectID).Scan(&kind, &amount, &timeline, &classes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FetchDeclaredGoal: query: %w", err)
	}

	goal.Kind = domain.GoalKind(kind)
	goal.Amount = floatPtr(amount)
	goal.TimelineYears = floatPtr(timeline)
	if classes.Valid && classes.String != "" {
		if err := json.Unmarshal([]byte(classes.String), &goal.InterestedAssetClasses); err != nil {
			return nil, fmt.Errorf("FetchDeclaredGoal: unmarshal asset classes: %w", err)
		}
	}
	return &goal, nil
}

// SaveRiskProfile replaces the subject's prior risk profile.
func (s *Store) SaveRiskProfile(ctx context.Context, subjectID string, p domain.RiskProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_profiles (subject_id, tolerance, emergency_fund_months, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET
			tolerance = excluded.tolerance,
			emergency_fund_months = excluded.emergency_fund_months,
			updated_at = excluded.updated_at
	`, subjectID, string(p.Tolerance), nullFloat(p.EmergencyFundMonths), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("SaveRiskProfile: upsert: %w", err)
	}
	return nil
}

// FetchRiskProfile returns nil when no profile was stored.
func (s *Store) FetchRiskProfile(ctx context.Context, subjectID string) (*domain.RiskProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		tolerance string
		months    sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT tolerance, emergency_fund_months
		FROM risk_profiles
		WHERE subject_id = ?
	`, subjectID).Scan(&tolerance, &months)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FetchRiskProfile: query: %w", err)
	}

	p := &domain.RiskProfile{EmergencyFundMonths: floatPtr(months)}
	if t, ok := domain.ParseRiskTolerance(tolerance); ok {
		p.Tolerance = t
	}
	return p, nil
}
