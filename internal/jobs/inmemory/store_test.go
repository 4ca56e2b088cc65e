package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/fiscal-pilot/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	job := &jobs.CycleJob{JobID: "j1", Type: jobs.JobTypeSpending, SubjectID: "u1", Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))

	// mutating the caller's copy must not leak into the store
	job.Status = jobs.JobStatusFailed

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)
}

func TestStore_SaveRequiresID(t *testing.T) {
	assert.Error(t, NewStore().SaveJob(context.Background(), &jobs.CycleJob{}))
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	err = s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "boom")
	assert.ErrorIs(t, err, jobs.ErrNotFound)
}

func TestStore_UpdateJobStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.SaveJob(ctx, &jobs.CycleJob{JobID: "j1", Error: "earlier"}))

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusRunning, ""))
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusRunning, got.Status)
	assert.Equal(t, "earlier", got.Error)

	require.NoError(t, s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"))
	got, err = s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, "boom", got.Error)
}

func TestStore_ListJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	seed := []*jobs.CycleJob{
		{JobID: "a", Type: jobs.JobTypeSpending, SubjectID: "u1", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", Type: jobs.JobTypeInvestment, SubjectID: "u1", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Hour)},
		{JobID: "c", Type: jobs.JobTypeSpending, SubjectID: "u2", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Hour)},
		{JobID: "d", Type: jobs.JobTypeSpending, SubjectID: "u1", Status: jobs.JobStatusPending, CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, j := range seed {
		require.NoError(t, s.SaveJob(ctx, j))
	}

	ids := func(list []*jobs.CycleJob) []string {
		out := make([]string, 0, len(list))
		for _, j := range list {
			out = append(out, j.JobID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"d", "c", "b", "a"}},
		{"by subject", jobs.JobFilter{SubjectID: "u1"}, []string{"d", "b", "a"}},
		{"by type", jobs.JobFilter{Type: jobs.JobTypeInvestment}, []string{"b"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"c", "a"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"d", "c"}},
		{"offset", jobs.JobFilter{Offset: 1, Limit: 2}, []string{"c", "b"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}
