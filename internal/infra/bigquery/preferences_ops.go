package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// SaveDeclaredGoal upserts the subject's declared goal.
func (s *Store) SaveDeclaredGoal(ctx context.Context, subjectID string, goal domain.DeclaredGoal) error {
	classes := goal.InterestedAssetClasses
	if classes == nil {
		classes = []string{}
	}
	_, err := s.exec(ctx, `
		MERGE `+s.table(preferencesTable)+` t
		USING (SELECT @subject_id AS subject_id) src
		ON t.subject_id = src.subject_id
		WHEN MATCHED THEN UPDATE SET
			goal_kind = @goal_kind,
			goal_amount = @goal_amount,
			timeline_years = @timeline_years,
			asset_classes = @asset_classes,
			updated_ts = @updated_ts
		WHEN NOT MATCHED THEN INSERT
			(subject_id, goal_kind, goal_amount, timeline_years, asset_classes, updated_ts)
			VALUES (@subject_id, @goal_kind, @goal_amount, @timeline_years, @asset_classes, @updated_ts)
	`, []bigquery.QueryParameter{
		{Name: "subject_id", Value: subjectID},
		{Name: "goal_kind", Value: string(goal.Kind)},
		{Name: "goal_amount", Value: nullFloat(goal.Amount)},
		{Name: "timeline_years", Value: nullFloat(goal.TimelineYears)},
		{Name: "asset_classes", Value: classes},
		{Name: "updated_ts", Value: s.now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("SaveDeclaredGoal: %w", err)
	}
	return nil
}

// FetchDeclaredGoal returns nil when the subject has no preferences row.
func (s *Store) FetchDeclaredGoal(ctx context.Context, subjectID string) (*domain.DeclaredGoal, error) {
	q := s.client.Query(`
		SELECT subject_id, goal_kind, goal_amount, timeline_years, asset_classes, updated_ts
		FROM ` + s.table(preferencesTable) + `
		WHERE subject_id = @subject_id
		ORDER BY updated_ts DESC
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{{Name: "subject_id", Value: subjectID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchDeclaredGoal: reading query: %w", err)
	}
	var row PreferenceRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FetchDeclaredGoal: iterating: %w", err)
	}
	goal := row.Goal()
	return &goal, nil
}

// SaveRiskProfile upserts the subject's prior risk profile.
func (s *Store) SaveRiskProfile(ctx context.Context, subjectID string, p domain.RiskProfile) error {
	_, err := s.exec(ctx, `
		MERGE `+s.table(riskProfilesTable)+` t
		USING (SELECT @subject_id AS subject_id) src
		ON t.subject_id = src.subject_id
		WHEN MATCHED THEN UPDATE SET
			tolerance = @tolerance,
			emergency_fund_months = @emergency_fund_months,
			updated_ts = @updated_ts
		WHEN NOT MATCHED THEN INSERT
			(subject_id, tolerance, emergency_fund_months, updated_ts)
			VALUES (@subject_id, @tolerance, @emergency_fund_months, @updated_ts)
	`, []bigquery.QueryParameter{
		{Name: "subject_id", Value: subjectID},
		{Name: "tolerance", Value: string(p.Tolerance)},
		{Name: "emergency_fund_months", Value: nullFloat(p.EmergencyFundMonths)},
		{Name: "updated_ts", Value: s.now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("SaveRiskProfile: %w", err)
	}
	return nil
}

// FetchRiskProfile returns nil when no profile was stored.
func (s *Store) FetchRiskProfile(ctx context.Context, subjectID string) (*domain.RiskProfile, error) {
	q := s.client.Query(`
		SELECT subject_id, tolerance, emergency_fund_months, updated_ts
		FROM ` + s.table(riskProfilesTable) + `
		WHERE subject_id = @subject_id
		ORDER BY updated_ts DESC
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{{Name: "subject_id", Value: subjectID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchRiskProfile: reading query: %w", err)
	}
	var row RiskProfileRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FetchRiskProfile: iterating: %w", err)
	}
	p := row.Profile()
	return &p, nil
}
