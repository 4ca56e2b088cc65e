package domain

import (
	"math"

	"cloud.google.com/go/civil"
)

// TxType tags the economic nature of a transaction.
type TxType string

const (
	TxIncome   TxType = "income"
	TxExpense  TxType = "expense"
	TxTransfer TxType = "transfer"
)

// UncategorizedCategory is used when a transaction carries no category.
const UncategorizedCategory = "Uncategorized"

// TransactionRecord is one normalized transaction for a subject.
// Amount is signed: positive is an inflow, negative an outflow.
// Records are produced by ingestion and never mutated by the cycles.
type TransactionRecord struct {
	TransactionID string
	SubjectID     string
	Amount        float64
	Date          civil.Date
	Type          TxType
	Category      string // empty when unknown

	Subscription  bool
	Installment   bool
	Discretionary bool
	Recurring     bool

	Merchant    string
	Description string
	Source      string // e.g. "manual", "mock", "import"
}

// CategoryOrDefault returns the category or UncategorizedCategory.
func (t TransactionRecord) CategoryOrDefault() string {
	if t.Category == "" {
		return UncategorizedCategory
	}
	return t.Category
}

// IsInflow reports whether t is positive-signed income.
func (t TransactionRecord) IsInflow() bool {
	return t.Type == TxIncome && t.Amount > 0
}

// IsOutflow reports whether t is negative-signed expense.
func (t TransactionRecord) IsOutflow() bool {
	return t.Type == TxExpense && t.Amount < 0
}

// NormalizeSign forces the sign convention for a record coming from an
// adapter that reports unsigned or inverted amounts: income is made positive,
// expense negative. Transfers keep the sign they came with.
func NormalizeSign(t TransactionRecord) TransactionRecord {
	switch t.Type {
	case TxIncome:
		t.Amount = math.Abs(t.Amount)
	case TxExpense:
		t.Amount = -math.Abs(t.Amount)
	}
	return t
}

// ParseTxType maps a free-form type tag to a TxType. Unknown tags are
// treated as transfers so they never count toward income or expenses.
func ParseTxType(s string) TxType {
	switch TxType(s) {
	case TxIncome, TxExpense:
		return TxType(s)
	default:
		return TxTransfer
	}
}
