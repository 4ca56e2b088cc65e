package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dvloznov/fiscal-pilot/internal/investment"
)

const defaultHistoryLimit = 10

// SaveRecommendation inserts rec. Recommendations are never updated, so a
// duplicate id is an error.
func (s *Store) SaveRecommendation(ctx context.Context, rec investment.Recommendation) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("SaveRecommendation: marshal: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO investment_recommendations
		(recommendation_id, subject_id, primary_path, confidence, safety_override, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RecommendationID,
		rec.SubjectID,
		string(rec.PrimaryPath),
		rec.Confidence,
		boolInt(rec.SafetyOverride),
		string(payload),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("SaveRecommendation: insert: %w", err)
	}
	return nil
}

// LatestRecommendation returns nil when the subject has none.
func (s *Store) LatestRecommendation(ctx context.Context, subjectID string) (*investment.Recommendation, error) {
	recs, err := s.RecommendationHistory(ctx, subjectID, 1)
	if err != nil {
		return nil, fmt.Errorf("LatestRecommendation: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// RecommendationHistory returns up to limit recommendations, newest first.
// Ties on created_at go to the later insert.
func (s *Store) RecommendationHistory(ctx context.Context, subjectID string, limit int) ([]investment.Recommendation, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload_json
		FROM investment_recommendations
		WHERE subject_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("RecommendationHistory: query: %w", err)
	}
	defer rows.Close()

	out := []investment.Recommendation{}
	for rows.Next() {
		var payload sql.NullString
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("RecommendationHistory: scan: %w", err)
		}
		var rec investment.Recommendation
		if err := json.Unmarshal([]byte(payload.String), &rec); err != nil {
			return nil, fmt.Errorf("RecommendationHistory: unmarshal: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecommendationHistory: rows: %w", err)
	}
	return out, nil
}
