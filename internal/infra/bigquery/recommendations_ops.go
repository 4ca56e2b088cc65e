package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fiscal-pilot/internal/investment"
)

// SaveRecommendation inserts rec. Rows are never updated.
func (s *Store) SaveRecommendation(ctx context.Context, rec investment.Recommendation) error {
	row, err := newRecommendationRow(rec)
	if err != nil {
		return fmt.Errorf("SaveRecommendation: %w", err)
	}
	_, err = s.exec(ctx, `
		INSERT INTO `+s.table(recommendationsTable)+` (
			recommendation_id, subject_id, primary_path,
			confidence, safety_override, payload, created_ts
		)
		VALUES (
			@recommendation_id, @subject_id, @primary_path,
			@confidence, @safety_override, PARSE_JSON(@payload), @created_ts
		)
	`, []bigquery.QueryParameter{
		{Name: "recommendation_id", Value: row.RecommendationID},
		{Name: "subject_id", Value: row.SubjectID},
		{Name: "primary_path", Value: row.PrimaryPath},
		{Name: "confidence", Value: row.Confidence},
		{Name: "safety_override", Value: row.SafetyOverride},
		{Name: "payload", Value: row.Payload.JSONVal},
		{Name: "created_ts", Value: row.CreatedTS},
	})
	if err != nil {
		return fmt.Errorf("SaveRecommendation: %w", err)
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
func (s *Store) RecommendationHistory(ctx context.Context, subjectID string, limit int) ([]investment.Recommendation, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	q := s.client.Query(`
		SELECT
			recommendation_id,
			subject_id,
			primary_path,
			confidence,
			safety_override,
			payload,
			created_ts
		FROM ` + s.table(recommendationsTable) + `
		WHERE subject_id = @subject_id
		ORDER BY created_ts DESC
		LIMIT @limit
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "subject_id", Value: subjectID},
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("RecommendationHistory: reading query: %w", err)
	}

	out := []investment.Recommendation{}
	for {
		var row RecommendationRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("RecommendationHistory: iterating: %w", err)
		}
		rec, err := row.Recommendation()
		if err != nil {
			return nil, fmt.Errorf("RecommendationHistory: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
