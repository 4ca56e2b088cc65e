package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/fiscal-pilot/internal/jobs"
)

// Store is an in-memory JobStore. Data is lost on restart.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.CycleJob
}

// NewStore creates a new in-memory job store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*jobs.CycleJob),
	}
}

// SaveJob saves a copy of job.
func (s *Store) SaveJob(_ context.Context, job *jobs.CycleJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

// GetJob returns a copy of the job or an error wrapping jobs.ErrNotFound.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.CycleJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("GetJob %s: %w", jobID, jobs.ErrNotFound)
	}
	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs returns matching jobs, newest first.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.CycleJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*jobs.CycleJob{}
	for _, job := range s.jobs {
		if filter.SubjectID != "" && job.SubjectID != filter.SubjectID {
			continue
		}
		if filter.Type != "" && job.Type != filter.Type {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.CycleJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateJobStatus sets a job's status and, when non-empty, its error.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("UpdateJobStatus %s: %w", jobID, jobs.ErrNotFound)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

var _ jobs.JobStore = (*Store)(nil)
