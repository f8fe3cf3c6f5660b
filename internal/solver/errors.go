package solver

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cwbudde/proxgrad/internal/oracle"
	"github.com/cwbudde/proxgrad/internal/vec"
)

// ErrorKind classifies a fatal condition.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindDimensionMismatch
	KindOracle
	KindStepSizeExhausted
	KindConfiguration
)

var kindNames = map[ErrorKind]string{
	KindNone:              "None",
	KindDimensionMismatch: "DimensionMismatch",
	KindOracle:            "OracleError",
	KindStepSizeExhausted: "StepSizeExhausted",
	KindConfiguration:     "ConfigurationError",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

var (
	// ErrStepSizeExhausted is returned when backtracking cannot find an
	// acceptable step within the shrink budget.
	ErrStepSizeExhausted = errors.New("solver: step size exhausted")
	// ErrTerminal is returned when stepping an iterator that already stopped.
	ErrTerminal = errors.New("solver: iterator is in a terminal state")
)

// SolveError describes why a run failed. It is attached to Result.Err.
type SolveError struct {
	Kind      ErrorKind
	Iteration int
	Err       error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("%s at iteration %d: %v", e.Kind, e.Iteration, e.Err)
}

func (e *SolveError) Unwrap() error { return e.Err }

// ConfigError reports an invalid option or input; Solve returns it before any
// oracle is called.
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// Kind returns KindConfiguration.
func (e *ConfigError) Kind() ErrorKind { return KindConfiguration }

// classify maps an error raised during iteration to its kind. Dimension
// problems win over the generic oracle kind even when the oracle reported them.
func classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, vec.ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrStepSizeExhausted):
		return KindStepSizeExhausted
	}
	var oerr *oracle.Error
	if errors.As(err, &oerr) {
		return KindOracle
	}
	var cerr *ConfigError
	if errors.As(err, &cerr) {
		return KindConfiguration
	}
	return KindOracle
}

// KindOf returns the kind carried by err, or KindNone.
func KindOf(err error) ErrorKind {
	var serr *SolveError
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return classify(err)
}
