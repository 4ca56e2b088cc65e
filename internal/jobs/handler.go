package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/fiscal-pilot/internal/domain"
	"github.com/dvloznov/fiscal-pilot/internal/investment"
	"github.com/dvloznov/fiscal-pilot/internal/logger"
	"github.com/dvloznov/fiscal-pilot/internal/spending"
)

// SpendingRunner runs one spending cycle.
type SpendingRunner interface {
	RunCycle(ctx context.Context, subjectID string) *spending.CycleResult
}

// InvestmentRunner runs one investment cycle.
type InvestmentRunner interface {
	Run(ctx context.Context, subjectID string) *investment.Result
}

// NewCycleHandler dispatches jobs to the cycle runners. A cycle that ends in
// the error status fails the job so it is retried; insufficient data is a
// normal outcome.
func NewCycleHandler(sp SpendingRunner, inv InvestmentRunner) JobHandler {
	return func(ctx context.Context, job *CycleJob) error {
		ctx, log := logger.ForSubject(ctx, job.SubjectID, string(job.Type))
		log = log.With().Str("job_id", job.JobID).Logger()

		var (
			status  domain.CycleStatus
			message string
		)
		switch job.Type {
		case JobTypeSpending:
			res := sp.RunCycle(ctx, job.SubjectID)
			status, message = res.Status, res.Message
		case JobTypeInvestment:
			res := inv.Run(ctx, job.SubjectID)
			status, message = res.Status, res.Message
			if res.Recommendation != nil {
				job.RecordID = res.Recommendation.RecommendationID
			}
		default:
			return fmt.Errorf("unexpected job type: %q", job.Type)
		}

		job.Outcome = string(status)
		if status == domain.StatusError {
			log.Warn().Str("message", message).Msg("Cycle ended in error")
			return fmt.Errorf("%s cycle: %s", job.Type, message)
		}
		log.Info().Str("outcome", job.Outcome).Msg("Cycle job finished")
		return nil
	}
}
