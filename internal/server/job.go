package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/proxgrad/internal/solver"
	"github.com/cwbudde/proxgrad/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job has stopped.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig is the request body of POST /api/v1/jobs. It is the same shape
// as a persisted run config.
type JobConfig = store.RunConfig

// Job represents one solve submitted to the server.
type Job struct {
	ID               string        `json:"id"`
	State            JobState      `json:"state"`
	Config           JobConfig     `json:"config"`
	X                []float64     `json:"x,omitempty"`
	Objective        float64       `json:"objective"`
	InitialObjective float64       `json:"initialObjective"`
	GradMapNorm      float64       `json:"gradMapNorm"`
	StepSize         float64       `json:"stepSize"`
	Restarts         int           `json:"restarts"`
	Iterations       int           `json:"iterations"`
	FunEvals         int           `json:"funEvals"`
	Status           solver.Status `json:"status,omitempty"`
	Reason           solver.Reason `json:"reason,omitempty"`
	StartTime        time.Time     `json:"startTime"`
	EndTime          *time.Time    `json:"endTime,omitempty"`
	Error            string        `json:"error,omitempty"`

	history []solver.IterationRecord
	ctx     context.Context
	cancel  context.CancelFunc
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job. Its context is derived from parent and
// is cancelled by CancelJob.
func (jm *JobManager) CreateJob(parent context.Context, config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	ctx, cancel := context.WithCancel(parent)
	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	jm.jobs[job.ID] = job
	snapshot := job.snapshot()
	return &snapshot
}

// snapshot copies the exported fields. Callers hold jm.mu.
func (j *Job) snapshot() Job {
	c := *j
	c.X = append([]float64(nil), j.X...)
	c.history = nil
	c.ctx = nil
	c.cancel = nil
	return c
}

// GetJob returns a copy of the job.
func (jm *JobManager) GetJob(id string) (Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return Job{}, false
	}
	return job.snapshot(), true
}

// ListJobs returns copies of all jobs, oldest first.
func (jm *JobManager) ListJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.snapshot())
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartTime.Before(jobs[k].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// History returns a copy of the iteration records collected so far.
func (jm *JobManager) History(id string) ([]solver.IterationRecord, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return append([]solver.IterationRecord{}, job.history...), true
}

// CancelJob asks a job to stop. The solver notices at the start of its next
// iteration. Cancelling a finished job is a no-op.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if !job.State.Terminal() {
		job.cancel()
	}
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.snapshot())
		}
	}
	return runningJobs
}

// jobContext returns the context the job runs under.
func (jm *JobManager) jobContext(id string) (context.Context, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.ctx, true
}
