// Package bigquery is the BigQuery persistence backend. Every write that a
// later statement may update goes through DML rather than the streaming
// inserter, so rows are never stuck in the streaming buffer.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
)

const (
	transactionsTable    = "transactions"
	preferencesTable     = "user_preferences"
	riskProfilesTable    = "risk_profiles"
	actionsTable         = "agent_actions"
	recommendationsTable = "investment_recommendations"

	defaultHistoryLimit = 10
)

// Store implements the repositories on top of one shared BigQuery client.
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	now       func() time.Time
}

// New creates a Store with its own client.
func New(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("New: creating client: %w", err)
	}
	return NewWithClient(client, projectID, datasetID), nil
}

// NewWithClient wraps an existing client. Close closes it.
func NewWithClient(client *bigquery.Client, projectID, datasetID string) *Store {
	return &Store{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
		now:       time.Now,
	}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.projectID, s.datasetID, name)
}

// exec runs a DML statement and returns the number of affected rows.
func (s *Store) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) (int64, error) {
	q := s.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}
	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}
