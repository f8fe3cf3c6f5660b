package solver

import "fmt"

// State is the iterator's lifecycle position.
type State int

const (
	StateInit State = iota
	StateRunning
	StateConverged
	StateMaxIter
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateMaxIter:
		return "max-iter"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further steps are allowed.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateMaxIter || s == StateFailed
}

// Status is the terminal outcome of a solve.
type Status string

const (
	StatusConverged         Status = "converged"
	StatusMaxIterations     Status = "max-iterations"
	StatusMaxFunEvals       Status = "max-function-evaluations"
	StatusTimeLimit         Status = "time-limit"
	StatusCancelled         Status = "cancelled"
	StatusStepSizeExhausted Status = "step-size-exhausted"
	StatusOracleError       Status = "oracle-error"
	StatusDimensionMismatch Status = "dimension-mismatch"
)

// Failed reports whether the status ends in StateFailed.
func (s Status) Failed() bool {
	switch s {
	case StatusStepSizeExhausted, StatusOracleError, StatusDimensionMismatch:
		return true
	}
	return false
}

// State returns the iterator state a status terminates in. Budget limits
// (iterations, evaluations, time, cancellation) all end in StateMaxIter.
func (s Status) State() State {
	switch {
	case s == StatusConverged:
		return StateConverged
	case s.Failed():
		return StateFailed
	}
	return StateMaxIter
}

func statusForKind(k ErrorKind) Status {
	switch k {
	case KindDimensionMismatch:
		return StatusDimensionMismatch
	case KindStepSizeExhausted:
		return StatusStepSizeExhausted
	}
	return StatusOracleError
}

// Reason names the convergence criterion that stopped a converged run.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonFunctionChange  Reason = "function-change"
	ReasonIterateChange   Reason = "iterate-change"
	ReasonGradientMapping Reason = "gradient-mapping"
)
