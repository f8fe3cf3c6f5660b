package store

import (
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/proxgrad/internal/problem"
	"github.com/cwbudde/proxgrad/internal/solver"
)

// RunConfig records what was solved. The full problem spec is embedded so a
// run can be resumed without the original file.
type RunConfig struct {
	ProblemPath string       `json:"problemPath,omitempty"`
	Problem     problem.Spec `json:"problem"`
	WarmStart   bool         `json:"warmStart,omitempty"`
	Seed        int64        `json:"seed,omitempty"`
}

// RunRecord is the persisted outcome of one solve.
//
// Only the final iterate is kept, not the momentum state. Resuming a run
// starts a fresh solve from X, which is a pure proximal-gradient step first
// and may take a slightly different path than an uninterrupted run would.
type RunRecord struct {
	RunID string `json:"runId"`

	X                []float64 `json:"x"`
	Objective        float64   `json:"objective"`
	InitialObjective float64   `json:"initialObjective"`

	Status     solver.Status `json:"status"`
	Reason     solver.Reason `json:"reason,omitempty"`
	Error      string        `json:"error,omitempty"`
	Iterations int           `json:"iterations"`
	FunEvals   int           `json:"funEvals"`
	ProxEvals  int           `json:"proxEvals"`
	Elapsed    time.Duration `json:"elapsed"`

	// ResumedFrom is the run this one continued, if any.
	ResumedFrom string    `json:"resumedFrom,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	Config RunConfig `json:"config"`
}

// RunInfo is the listing view of a run.
type RunInfo struct {
	RunID      string        `json:"runId"`
	Name       string        `json:"name"`
	Kind       problem.Kind  `json:"kind"`
	Status     solver.Status `json:"status"`
	Objective  float64       `json:"objective"`
	Iterations int           `json:"iterations"`
	Timestamp  time.Time     `json:"timestamp"`
}

// NewRunRecord converts a solver result into a persistable record. The
// result must contain at least the starting point record.
func NewRunRecord(runID string, res *solver.Result, config RunConfig) *RunRecord {
	rec := &RunRecord{
		RunID:      runID,
		X:          append([]float64(nil), res.X...),
		Objective:  res.Objective,
		Status:     res.Status,
		Reason:     res.Reason,
		Iterations: res.Iterations,
		FunEvals:   res.FunEvals,
		ProxEvals:  res.ProxEvals,
		Elapsed:    res.Elapsed,
		Timestamp:  time.Now(),
		Config:     config,
	}
	if len(res.History) > 0 {
		rec.InitialObjective = res.History[0].Objective
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// ToInfo converts a full RunRecord to RunInfo.
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		RunID:      r.RunID,
		Name:       r.Config.Problem.Name,
		Kind:       r.Config.Problem.Kind,
		Status:     r.Status,
		Objective:  r.Objective,
		Iterations: r.Iterations,
		Timestamp:  r.Timestamp,
	}
}

// Validate checks that the record is complete and self-consistent.
func (r *RunRecord) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(r.X) == 0 {
		return &ValidationError{Field: "X", Reason: "cannot be empty"}
	}
	for _, v := range r.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "X", Reason: "must be finite"}
		}
	}
	if math.IsNaN(r.Objective) || math.IsInf(r.Objective, 0) {
		return &ValidationError{Field: "Objective", Reason: "must be finite"}
	}
	if r.Status == "" {
		return &ValidationError{Field: "Status", Reason: "cannot be empty"}
	}
	if r.Iterations < 0 {
		return &ValidationError{Field: "Iterations", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Problem.Kind == "" {
		return &ValidationError{Field: "Config.Problem.Kind", Reason: "cannot be empty"}
	}
	if n := r.Config.Problem.Dimension(); len(r.X) != n {
		return &ValidationError{
			Field:  "X",
			Reason: fmt.Sprintf("length mismatch: expected %d values for the problem dimension", n),
		}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether this run can be resumed against spec.
func (r *RunRecord) IsCompatible(spec *problem.Spec) error {
	if r.Config.Problem.Kind != spec.Kind {
		return &CompatibilityError{
			Field:    "Kind",
			Expected: string(r.Config.Problem.Kind),
			Actual:   string(spec.Kind),
		}
	}
	if r.Config.Problem.Dimension() != spec.Dimension() {
		return &CompatibilityError{
			Field:    "Dimension",
			Expected: fmt.Sprintf("%d", r.Config.Problem.Dimension()),
			Actual:   fmt.Sprintf("%d", spec.Dimension()),
		}
	}
	return nil
}

// CompatibilityError represents a resume compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
