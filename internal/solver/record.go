package solver

import "time"

// IterationRecord is one entry of the run history. Record 0 describes the
// starting point.
type IterationRecord struct {
	Iteration   int           `json:"iteration"`
	Objective   float64       `json:"objective"`
	GradMapNorm float64       `json:"gradMapNorm"`
	StepSize    float64       `json:"stepSize"`
	FunEvals    int           `json:"funEvals"`
	ProxEvals   int           `json:"proxEvals"`
	Backtracks  int           `json:"backtracks"`
	Restarted   bool          `json:"restarted,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Result is the terminal outcome of Solve. It is built once when the loop
// exits and never modified afterwards.
type Result struct {
	X         []float64
	Objective float64
	State     State
	Status    Status
	Reason    Reason
	// Err is a *SolveError when Status.Failed().
	Err        error
	Iterations int
	FunEvals   int
	ProxEvals  int
	History    []IterationRecord
	Elapsed    time.Duration
}

// Converged reports whether a convergence criterion stopped the run.
func (r *Result) Converged() bool { return r.Status == StatusConverged }

// ErrKind returns the kind of failure, or KindNone.
func (r *Result) ErrKind() ErrorKind {
	if r.Err == nil {
		return KindNone
	}
	return KindOf(r.Err)
}

// Objectives returns F(x_k) for every history record.
func (r *Result) Objectives() []float64 {
	out := make([]float64, len(r.History))
	for i, rec := range r.History {
		out[i] = rec.Objective
	}
	return out
}
