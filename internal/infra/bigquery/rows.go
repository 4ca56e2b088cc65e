package bigquery

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/investment"
)

// TransactionRow is one row of the transactions table.
type TransactionRow struct {
	TransactionID string     `bigquery:"transaction_id"`
	SubjectID     string     `bigquery:"subject_id"`
	TxDate        civil.Date `bigquery:"tx_date"`

	Amount *big.Rat `bigquery:"amount"` // NUMERIC, signed
	TxType string   `bigquery:"tx_type"`

	Category    bigquery.NullString `bigquery:"category"`
	Merchant    bigquery.NullString `bigquery:"merchant"`
	Description bigquery.NullString `bigquery:"description"`
	Source      bigquery.NullString `bigquery:"source"`

	IsSubscription  bool `bigquery:"is_subscription"`
	IsInstallment   bool `bigquery:"is_installment"`
	IsDiscretionary bool `bigquery:"is_discretionary"`
	IsRecurring     bool `bigquery:"is_recurring"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

// PreferenceRow is one row of the user_preferences table.
type PreferenceRow struct {
	SubjectID     string               `bigquery:"subject_id"`
	GoalKind      string               `bigquery:"goal_kind"`
	GoalAmount    bigquery.NullFloat64 `bigquery:"goal_amount"`
	TimelineYears bigquery.NullFloat64 `bigquery:"timeline_years"`
	AssetClasses  []string             `bigquery:"asset_classes"`
	UpdatedTS     time.Time            `bigquery:"updated_ts"`
}

// RiskProfileRow is one row of the risk_profiles table.
type RiskProfileRow struct {
	SubjectID           string               `bigquery:"subject_id"`
	Tolerance           string               `bigquery:"tolerance"`
	EmergencyFundMonths bigquery.NullFloat64 `bigquery:"emergency_fund_months"`
	UpdatedTS           time.Time            `bigquery:"updated_ts"`
}

// ActionRow is one row of the agent_actions table.
type ActionRow struct {
	ActionID    string                 `bigquery:"action_id"`
	SubjectID   string                 `bigquery:"subject_id"`
	Kind        string                 `bigquery:"kind"`
	Message     string                 `bigquery:"message"`
	Reasoning   string                 `bigquery:"reasoning"`
	Category    bigquery.NullString    `bigquery:"category"`
	Amount      bigquery.NullFloat64   `bigquery:"amount"`
	TriggerKind string                 `bigquery:"trigger_kind"`
	Resolved    bool                   `bigquery:"resolved"`
	ResolvedTS  bigquery.NullTimestamp `bigquery:"resolved_ts"`
	CreatedTS   time.Time              `bigquery:"created_ts"`
}

// RecommendationRow is one row of the investment_recommendations table.
// The full recommendation is kept in Payload.
type RecommendationRow struct {
	RecommendationID string            `bigquery:"recommendation_id"`
	SubjectID        string            `bigquery:"subject_id"`
	PrimaryPath      string            `bigquery:"primary_path"`
	Confidence       float64           `bigquery:"confidence"`
	SafetyOverride   bool              `bigquery:"safety_override"`
	Payload          bigquery.NullJSON `bigquery:"payload"`
	CreatedTS        time.Time         `bigquery:"created_ts"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullFloat(f *float64) bigquery.NullFloat64 {
	if f == nil {
		return bigquery.NullFloat64{}
	}
	return bigquery.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n bigquery.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

// numeric converts an amount to NUMERIC, rounded to paise.
func numeric(v float64) *big.Rat {
	return decimal.NewFromFloat(v).Round(2).Rat()
}

func newTransactionRow(rec domain.TransactionRecord, created time.Time) *TransactionRow {
	rec = domain.NormalizeSign(rec)
	return &TransactionRow{
		TransactionID:   rec.TransactionID,
		SubjectID:       rec.SubjectID,
		TxDate:          rec.Date,
		Amount:          numeric(rec.Amount),
		TxType:          string(rec.Type),
		Category:        nullString(rec.Category),
		Merchant:        nullString(rec.Merchant),
		Description:     nullString(rec.Description),
		Source:          nullString(rec.Source),
		IsSubscription:  rec.Subscription,
		IsInstallment:   rec.Installment,
		IsDiscretionary: rec.Discretionary,
		IsRecurring:     rec.Recurring,
		CreatedTS:       created.UTC(),
	}
}

// Record converts the row to a domain record.
func (r *TransactionRow) Record() domain.TransactionRecord {
	var amount float64
	if r.Amount != nil {
		amount, _ = r.Amount.Float64()
	}
	return domain.TransactionRecord{
		TransactionID: r.TransactionID,
		SubjectID:     r.SubjectID,
		Amount:        amount,
		Date:          r.TxDate,
		Type:          domain.ParseTxType(r.TxType),
		Category:      r.Category.StringVal,
		Subscription:  r.IsSubscription,
		Installment:   r.IsInstallment,
		Discretionary: r.IsDiscretionary,
		Recurring:     r.IsRecurring,
		Merchant:      r.Merchant.StringVal,
		Description:   r.Description.StringVal,
		Source:        r.Source.StringVal,
	}
}

// Goal converts the row to a declared goal.
func (r *PreferenceRow) Goal() domain.DeclaredGoal {
	return domain.DeclaredGoal{
		Kind:                   domain.GoalKind(r.GoalKind),
		Amount:                 floatPtr(r.GoalAmount),
		TimelineYears:          floatPtr(r.TimelineYears),
		InterestedAssetClasses: r.AssetClasses,
	}
}

// Profile converts the row to a risk profile. An unknown tolerance is left
// empty so the profiler derives one.
func (r *RiskProfileRow) Profile() domain.RiskProfile {
	p := domain.RiskProfile{EmergencyFundMonths: floatPtr(r.EmergencyFundMonths)}
	if t, ok := domain.ParseRiskTolerance(r.Tolerance); ok {
		p.Tolerance = t
	}
	return p
}

func newActionRow(a domain.PersistedAction) *ActionRow {
	row := &ActionRow{
		ActionID:    a.ActionID,
		SubjectID:   a.SubjectID,
		Kind:        string(a.Kind),
		Message:     a.Message,
		Reasoning:   a.Reasoning,
		Category:    nullString(a.Category),
		Amount:      nullFloat(a.Amount),
		TriggerKind: string(a.Trigger),
		Resolved:    a.Resolved,
		CreatedTS:   a.CreatedAt.UTC(),
	}
	if a.ResolvedAt != nil {
		row.ResolvedTS = bigquery.NullTimestamp{Timestamp: a.ResolvedAt.UTC(), Valid: true}
	}
	return row
}

// Action converts the row to a persisted action.
func (r *ActionRow) Action() domain.PersistedAction {
	a := domain.PersistedAction{
		ActionID:  r.ActionID,
		SubjectID: r.SubjectID,
		PlannedAction: domain.PlannedAction{
			Kind:      domain.ActionKind(r.Kind),
			Message:   r.Message,
			Reasoning: r.Reasoning,
			Category:  r.Category.StringVal,
			Amount:    floatPtr(r.Amount),
			Trigger:   domain.FindingKind(r.TriggerKind),
		},
		Resolved:  r.Resolved,
		CreatedAt: r.CreatedTS,
	}
	if r.ResolvedTS.Valid {
		t := r.ResolvedTS.Timestamp
		a.ResolvedAt = &t
	}
	return a
}

func newRecommendationRow(rec investment.Recommendation) (*RecommendationRow, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal recommendation: %w", err)
	}
	return &RecommendationRow{
		RecommendationID: rec.RecommendationID,
		SubjectID:        rec.SubjectID,
		PrimaryPath:      string(rec.PrimaryPath),
		Confidence:       rec.Confidence,
		SafetyOverride:   rec.SafetyOverride,
		Payload:          bigquery.NullJSON{JSONVal: string(payload), Valid: true},
		CreatedTS:        rec.CreatedAt.UTC(),
	}, nil
}

// Recommendation decodes the stored payload.
func (r *RecommendationRow) Recommendation() (investment.Recommendation, error) {
	var rec investment.Recommendation
	if !r.Payload.Valid {
		return rec, fmt.Errorf("recommendation %s has no payload", r.RecommendationID)
	}
	if err := json.Unmarshal([]byte(r.Payload.JSONVal), &rec); err != nil {
		return rec, fmt.Errorf("unmarshal recommendation %s: %w", r.RecommendationID, err)
	}
	return rec, nil
}
