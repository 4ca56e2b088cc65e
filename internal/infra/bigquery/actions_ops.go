package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

const actionColumns = `
			action_id,
			subject_id,
			kind,
			message,
			reasoning,
			category,
			amount,
			trigger_kind,
			resolved,
			resolved_ts,
			created_ts`

// InsertAction stores one action with a DML INSERT so it can be resolved
// right away.
func (s *Store) InsertAction(ctx context.Context, a domain.PersistedAction) error {
	row := newActionRow(a)
	_, err := s.exec(ctx, `
		INSERT INTO `+s.table(actionsTable)+` (`+actionColumns+`
		)
		VALUES (
			@action_id, @subject_id, @kind, @message, @reasoning, @category, @amount,
			@trigger_kind, @resolved, @resolved_ts, @created_ts
		)
	`, []bigquery.QueryParameter{
		{Name: "action_id", Value: row.ActionID},
		{Name: "subject_id", Value: row.SubjectID},
		{Name: "kind", Value: row.Kind},
		{Name: "message", Value: row.Message},
		{Name: "reasoning", Value: row.Reasoning},
		{Name: "category", Value: row.Category},
		{Name: "amount", Value: row.Amount},
		{Name: "trigger_kind", Value: row.TriggerKind},
		{Name: "resolved", Value: row.Resolved},
		{Name: "resolved_ts", Value: row.ResolvedTS},
		{Name: "created_ts", Value: row.CreatedTS},
	})
	if err != nil {
		return fmt.Errorf("InsertAction: %w", err)
	}
	return nil
}

// GetAction returns nil when the action does not exist for the subject.
func (s *Store) GetAction(ctx context.Context, subjectID, actionID string) (*domain.PersistedAction, error) {
	q := s.client.Query(`
		SELECT` + actionColumns + `
		FROM ` + s.table(actionsTable) + `
		WHERE subject_id = @subject_id AND action_id = @action_id
		LIMIT 1
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "subject_id", Value: subjectID},
		{Name: "action_id", Value: actionID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetAction: reading query: %w", err)
	}
	var row ActionRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetAction: iterating: %w", err)
	}
	a := row.Action()
	return &a, nil
}

// MarkActionResolved resolves an unresolved action and reports whether a
// row changed.
func (s *Store) MarkActionResolved(ctx context.Context, subjectID, actionID string, at time.Time) (bool, error) {
	n, err := s.exec(ctx, `
		UPDATE `+s.table(actionsTable)+`
		SET resolved = TRUE, resolved_ts = @resolved_ts
		WHERE subject_id = @subject_id
		  AND action_id = @action_id
		  AND resolved = FALSE
	`, []bigquery.QueryParameter{
		{Name: "resolved_ts", Value: at.UTC()},
		{Name: "subject_id", Value: subjectID},
		{Name: "action_id", Value: actionID},
	})
	if err != nil {
		return false, fmt.Errorf("MarkActionResolved: %w", err)
	}
	return n > 0, nil
}

// ListActions returns a subject's actions, newest first.
func (s *Store) ListActions(ctx context.Context, subjectID string, filter domain.ActionFilter) ([]domain.PersistedAction, error) {
	sql := `
		SELECT` + actionColumns + `
		FROM ` + s.table(actionsTable) + `
		WHERE subject_id = @subject_id`
	params := []bigquery.QueryParameter{{Name: "subject_id", Value: subjectID}}
	if filter.UnresolvedOnly {
		sql += `
		  AND resolved = FALSE`
	}
	sql += `
		ORDER BY created_ts DESC, action_id`
	if filter.Limit > 0 {
		sql += `
		LIMIT @limit`
		params = append(params, bigquery.QueryParameter{Name: "limit", Value: filter.Limit})
	}

	q := s.client.Query(sql)
	q.Parameters = params
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActions: reading query: %w", err)
	}

	out := []domain.PersistedAction{}
	for {
		var row ActionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActions: iterating: %w", err)
		}
		out = append(out, row.Action())
	}
	return out, nil
}
