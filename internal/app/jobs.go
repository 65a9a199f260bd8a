package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	jobqueue "github.com/okian/comps/internal/adapters/mq/queue"
	"github.com/okian/comps/internal/domain/model"
	"github.com/okian/comps/internal/domain/ranking"
	"github.com/okian/comps/pkg/logger"
	"github.com/okian/comps/pkg/metrics"
)

// JobState is the externally visible state of an asynchronous job.
type JobState struct {
	JobID       string               `json:"job_id"`
	TargetID    string               `json:"target_id"`
	Status      model.JobStatus      `json:"status"`
	SubmittedAt time.Time            `json:"submitted_at"`
	FinishedAt  *time.Time           `json:"finished_at,omitempty"`
	Result      *ComparablesResponse `json:"result,omitempty"`
	Error       string               `json:"error,omitempty"`
}

// SubmitJob enqueues a comparables job. A blank JobID gets a fresh UUID. A
// JobID seen within the dedupe window is not enqueued again; its current
// state is returned with duplicate set.
func (s *Service) SubmitJob(ctx context.Context, job model.Job) (state JobState, duplicate bool, err error) {
	job.TargetID = strings.TrimSpace(job.TargetID)
	if job.TargetID == "" {
		metrics.RecordJobSubmitted("invalid")
		return JobState{}, false, fmt.Errorf("%w: target_id is required", ErrInvalidJob)
	}
	if job.TopK < 0 {
		metrics.RecordJobSubmitted("invalid")
		return JobState{}, false, fmt.Errorf("%w: top_k must not be negative", ErrInvalidJob)
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}

	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()
	if !started {
		return JobState{}, false, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, job.JobID) {
		metrics.RecordJobSubmitted("duplicate")
		if st, ok := s.jobs.Get(job.JobID); ok {
			return st, true, nil
		}
		return JobState{JobID: job.JobID, TargetID: job.TargetID, Status: model.JobQueued, SubmittedAt: job.SubmittedAt}, true, nil
	}

	state = JobState{
		JobID:       job.JobID,
		TargetID:    job.TargetID,
		Status:      model.JobQueued,
		SubmittedAt: job.SubmittedAt,
	}
	s.jobs.Put(job.JobID, state)

	if err := q.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, job.JobID)
		s.jobs.Delete(job.JobID)
		metrics.RecordJobSubmitted("rejected")
		if errors.Is(err, jobqueue.ErrFull) || errors.Is(err, jobqueue.ErrClosed) {
			return JobState{}, false, fmt.Errorf("%w: %w", ErrBackpressure, err)
		}
		return JobState{}, false, err
	}

	metrics.RecordJobSubmitted("accepted")
	s.logger.Debug(ctx, "job accepted",
		logger.String("jobID", job.JobID),
		logger.String("targetID", job.TargetID),
	)
	return state, false, nil
}

// Job returns the state of a submitted job.
func (s *Service) Job(id string) (JobState, bool) {
	return s.jobs.Get(id)
}

// RunJob executes one job and records its outcome. It implements the worker
// pool's Runner.
func (s *Service) RunJob(ctx context.Context, job model.Job) error {
	state, ok := s.jobs.Get(job.JobID)
	if !ok {
		state = JobState{JobID: job.JobID, TargetID: job.TargetID, SubmittedAt: job.SubmittedAt}
	}
	state.Status = model.JobRunning
	s.jobs.Put(job.JobID, state)

	var overrides ranking.Overrides
	if job.TopK > 0 {
		overrides.TopK = &job.TopK
	}
	overrides.MinSimilarity = job.MinSimilarity

	resp, err := s.ComparablesByID(ctx, job.TargetID, &overrides)
	finished := time.Now().UTC()
	state.FinishedAt = &finished
	if err != nil {
		state.Status = model.JobFailed
		state.Error = err.Error()
	} else {
		state.Status = model.JobDone
		state.Result = resp
	}
	s.jobs.Put(job.JobID, state)
	metrics.RecordJobFinished(string(state.Status))
	return err
}
