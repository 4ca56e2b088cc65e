package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
)

// InsertTransactions streams a batch of transactions. Transactions are never
// updated afterwards, so the streaming buffer is not a concern here.
func (s *Store) InsertTransactions(ctx context.Context, txs []domain.TransactionRecord) error {
	if len(txs) == 0 {
		return nil
	}
	created := s.now()
	rows := make([]*TransactionRow, len(txs))
	for i, rec := range txs {
		rows[i] = newTransactionRow(rec, created)
	}

	inserter := s.client.DatasetInProject(s.projectID, s.datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

// FetchTransactions returns a subject's transactions dated on or after since,
// oldest first.
func (s *Store) FetchTransactions(ctx context.Context, subjectID string, since civil.Date) ([]domain.TransactionRecord, error) {
	q := s.client.Query(`
		SELECT
			transaction_id,
			subject_id,
			tx_date,
			amount,
			tx_type,
			category,
			merchant,
			description,
			source,
			is_subscription,
			is_installment,
			is_discretionary,
			is_recurring,
			created_ts
		FROM ` + s.table(transactionsTable) + `
		WHERE subject_id = @subject_id
		  AND tx_date >= @since
		ORDER BY tx_date, created_ts, transaction_id
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "subject_id", Value: subjectID},
		{Name: "since", Value: since},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchTransactions: query read: %w", err)
	}

	var out []domain.TransactionRecord
	for {
		var r TransactionRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchTransactions: iter next: %w", err)
		}
		out = append(out, r.Record())
	}
	return out, nil
}
