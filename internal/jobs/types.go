// Package jobs queues decision cycles for asynchronous execution.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by a JobStore for an unknown job id.
var ErrNotFound = errors.New("job not found")

// JobType names the cycle a job runs.
type JobType string

const (
	// JobTypeSpending runs the spending cycle.
	JobTypeSpending JobType = "spending"
	// JobTypeInvestment runs the investment cycle.
	JobTypeInvestment JobType = "investment"
)

// ParseJobType validates a job type from user input.
func ParseJobType(s string) (JobType, error) {
	switch JobType(s) {
	case JobTypeSpending, JobTypeInvestment:
		return JobType(s), nil
	}
	return "", fmt.Errorf("unknown cycle type %q (want %q or %q)", s, JobTypeSpending, JobTypeInvestment)
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the cycle ran to a terminal status.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed after its last retry.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// CycleJob is one queued cycle for one subject.
type CycleJob struct {
	JobID     string  `json:"job_id"`
	Type      JobType `json:"type"`
	SubjectID string  `json:"subject_id"`

	Status JobStatus `json:"status"`

	// Outcome is the cycle's terminal status once it ran.
	Outcome string `json:"outcome,omitempty"`
	// RecordID is the recommendation id for investment cycles.
	RecordID string `json:"record_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, job *CycleJob) error
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs; handler is called for each job.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error makes the job eligible for
// retry.
type JobHandler func(ctx context.Context, job *CycleJob) error

// JobStore records job state.
type JobStore interface {
	SaveJob(ctx context.Context, job *CycleJob) error
	GetJob(ctx context.Context, jobID string) (*CycleJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*CycleJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero values match everything.
type JobFilter struct {
	SubjectID string
	Type      JobType
	Status    JobStatus
	Limit     int
	Offset    int
}
