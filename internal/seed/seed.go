// Package seed generates a reproducible demo transaction history.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
	"github.com/dvloznov/fiscal-pilot/internal/money"
)

// Source tags every generated record.
const Source = "mock"

// MonthlySalary is the income credited on the first of each month.
const MonthlySalary = 50000.0

// idSpace namespaces generated transaction ids so reseeding is idempotent.
var idSpace = uuid.MustParse("6f1c2f0e-8a4b-4c33-9d2e-5b7a0c1d9e42")

// Options controls generation. Zero values pick the defaults.
type Options struct {
	Days int        // history length, default 90
	Seed uint64     // RNG seed, default 1
	End  civil.Date // last day of history, default today (UTC)
}

func (o Options) withDefaults() Options {
	if o.Days <= 0 {
		o.Days = 90
	}
	if o.Seed == 0 {
		o.Seed = 1
	}
	if !o.End.IsValid() {
		o.End = civil.DateOf(time.Now().UTC())
	}
	return o
}

// Writer is where seeded data goes.
type Writer interface {
	InsertTransactions(ctx context.Context, txs []domain.TransactionRecord) error
	SaveDeclaredGoal(ctx context.Context, subjectID string, goal domain.DeclaredGoal) error
}

type generator struct {
	subject string
	seed    uint64
	rng     *rand.Rand
	out     []domain.TransactionRecord
}

func (g *generator) add(day civil.Date, typ domain.TxType, amount float64, category, merchant string, mark func(*domain.TransactionRecord)) {
	rec := domain.TransactionRecord{
		TransactionID: uuid.NewSHA1(idSpace, []byte(g.subject+"/"+strconv.FormatUint(g.seed, 10)+"/"+strconv.Itoa(len(g.out)))).String(),
		SubjectID:     g.subject,
		Amount:        money.Round(amount, 2),
		Date:          day,
		Type:          typ,
		Category:      category,
		Merchant:      merchant,
		Description:   merchant + " Payment",
		Source:        Source,
	}
	if mark != nil {
		mark(&rec)
	}
	g.out = append(g.out, domain.NormalizeSign(rec))
}

func (g *generator) between(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *generator) pick(options ...string) string {
	return options[g.rng.IntN(len(options))]
}

func recurring(r *domain.TransactionRecord) { r.Recurring = true }
func discretionary(r *domain.TransactionRecord) { r.Discretionary = true }
func subscription(r *domain.TransactionRecord) {
	r.Subscription = true
	r.Recurring = true
}

// Generate returns a history of opt.Days days ending at opt.End, oldest
// first. The same subject and options always produce the same records,
// ids included.
func Generate(subjectID string, opt Options) []domain.TransactionRecord {
	opt = opt.withDefaults()
	g := &generator{
		subject: subjectID,
		seed:    opt.Seed,
		rng:     rand.New(rand.NewPCG(opt.Seed, opt.Seed^0x9e3779b97f4a7c15)),
	}

	start := opt.End.AddDays(-(opt.Days - 1))
	for day := start; !day.After(opt.End); day = day.AddDays(1) {
		switch day.Day {
		case 1:
			g.add(day, domain.TxIncome, MonthlySalary, "Salary/Income", "Salary Account", recurring)
			g.add(day, domain.TxExpense, 15000, "Rent", "Landlord", recurring)
		case 5:
			g.add(day, domain.TxExpense, g.between(1500, 2500), "Bills & Utilities", g.pick("Electricity Board", "Water Works"), recurring)
		case 10:
			g.add(day, domain.TxExpense, 649, "Subscriptions", "Netflix", subscription)
			g.add(day, domain.TxExpense, 119, "Subscriptions", "Spotify", subscription)
		}

		if day.In(time.UTC).Weekday() == time.Saturday {
			g.add(day, domain.TxExpense, g.between(1000, 2000), "Groceries", "Grocery Store", nil)
		}
		if g.rng.Float64() < 0.25 {
			g.add(day, domain.TxExpense, g.between(200, 1200), "Food & Dining", g.pick("Swiggy", "Zomato"), discretionary)
		}
		if g.rng.Float64() < 0.4 {
			g.add(day, domain.TxExpense, g.between(50, 400), "Transportation", g.pick("Uber", "Ola"), nil)
		}
		if g.rng.Float64() < 0.1 {
			g.add(day, domain.TxExpense, g.between(200, 2000), "Entertainment", g.pick("BookMyShow", "PVR"), discretionary)
		}
		if g.rng.Float64() < 0.1 {
			g.add(day, domain.TxExpense, g.between(500, 3000), "Shopping", g.pick("Amazon", "Flipkart"), discretionary)
		}
	}
	return g.out
}

// DefaultGoal is the declared goal written alongside the demo history.
func DefaultGoal() domain.DeclaredGoal {
	amount, years := 1000000.0, 10.0
	return domain.DeclaredGoal{
		Kind:                   domain.GoalWealthAccumulation,
		Amount:                 &amount,
		TimelineYears:          &years,
		InterestedAssetClasses: []string{"equity", "mutual_funds"},
	}
}

// Seed writes a generated history and the default goal for subjectID and
// returns the number of transactions written.
func Seed(ctx context.Context, w Writer, subjectID string, opt Options) (int, error) {
	if subjectID == "" {
		return 0, fmt.Errorf("Seed: subject id is required")
	}
	txs := Generate(subjectID, opt)
	if err := w.InsertTransactions(ctx, txs); err != nil {
		return 0, fmt.Errorf("Seed: inserting transactions: %w", err)
	}
	if err := w.SaveDeclaredGoal(ctx, subjectID, DefaultGoal()); err != nil {
		return 0, fmt.Errorf("Seed: saving goal: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().
		Str("subject_id", subjectID).
		Int("transactions", len(txs)).
		Msg("Demo data seeded")
	return len(txs), nil
}
