package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/infra/sqlite"
)

var end = civil.Date{Year: 2025, Month: time.March, Day: 31}

func TestGenerate_Reproducible(t *testing.T) {
	a := Generate("u1", Options{Seed: 7, End: end})
	b := Generate("u1", Options{Seed: 7, End: end})
	assert.Equal(t, a, b)

	c := Generate("u1", Options{Seed: 8, End: end})
	assert.NotEqual(t, a, c)

	other := Generate("u2", Options{Seed: 7, End: end})
	assert.NotEqual(t, a[0].TransactionID, other[0].TransactionID)
}

func TestGenerate_Shape(t *testing.T) {
	txs := Generate("u1", Options{Days: 90, End: end})
	require.NotEmpty(t, txs)

	start := end.AddDays(-89)
	ids := map[string]bool{}
	salaries := 0
	for _, tx := range txs {
		assert.False(t, tx.Date.Before(start), "date %s before window", tx.Date)
		assert.False(t, tx.Date.After(end), "date %s after window", tx.Date)
		assert.Equal(t, "u1", tx.SubjectID)
		assert.Equal(t, Source, tx.Source)
		assert.False(t, ids[tx.TransactionID], "duplicate id")
		ids[tx.TransactionID] = true

		switch tx.Type {
		case domain.TxIncome:
			assert.Positive(t, tx.Amount)
			salaries++
		case domain.TxExpense:
			assert.Negative(t, tx.Amount)
		default:
			t.Fatalf("unexpected type %s", tx.Type)
		}
	}
	// 2025-01-01 .. 2025-03-31 has three firsts of the month
	assert.Equal(t, 3, salaries)
	assert.True(t, ids[txs[0].TransactionID])
}

func TestGenerate_FlagsSubscriptions(t *testing.T) {
	for _, tx := range Generate("u1", Options{End: end}) {
		if tx.Merchant == "Netflix" {
			assert.True(t, tx.Subscription)
			assert.True(t, tx.Recurring)
			assert.Equal(t, -649.0, tx.Amount)
			return
		}
	}
	t.Fatal("no subscription generated")
}

type failingWriter struct{ err error }

func (f failingWriter) InsertTransactions(context.Context, []domain.TransactionRecord) error {
	return f.err
}

func (f failingWriter) SaveDeclaredGoal(context.Context, string, domain.DeclaredGoal) error {
	return nil
}

func TestSeed_IntoSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	opt := Options{Seed: 3, End: end}
	n, err := Seed(ctx, store, "u1", opt)
	require.NoError(t, err)
	assert.Equal(t, len(Generate("u1", opt)), n)

	// reseeding is idempotent
	_, err = Seed(ctx, store, "u1", opt)
	require.NoError(t, err)

	txs, err := store.FetchTransactions(ctx, "u1", civil.Date{Year: 2024, Month: time.January, Day: 1})
	require.NoError(t, err)
	assert.Len(t, txs, n)

	goal, err := store.FetchDeclaredGoal(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, goal)
	assert.Equal(t, domain.GoalWealthAccumulation, goal.Kind)
}

func TestSeed_Errors(t *testing.T) {
	_, err := Seed(context.Background(), failingWriter{}, "", Options{})
	assert.Error(t, err)

	_, err = Seed(context.Background(), failingWriter{err: errors.New("disk full")}, "u1", Options{End: end})
	assert.ErrorContains(t, err, "disk full")
}
