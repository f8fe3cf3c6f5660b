package solver

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Initial step strategies for the backtracking search.
const (
	// InitialStepPrevious starts every search from the last accepted step.
	InitialStepPrevious = "previous"
	// InitialStepBB starts every search from a Barzilai-Borwein step built
	// from the previous search point and gradient.
	InitialStepBB = "bb"
)

// Options configures a solve. The flat keys in the mapstructure tags form the
// configuration surface accepted by DecodeOptions.
type Options struct {
	// MaxIter caps the number of committed iterations.
	MaxIter int `mapstructure:"max_iter" json:"max_iter"`

	// TolF, TolX and TolGrad are the relative objective change, relative
	// iterate change and gradient-mapping thresholds. Zero disables a test.
	TolF    float64 `mapstructure:"tol_f" json:"tol_f"`
	TolX    float64 `mapstructure:"tol_x" json:"tol_x"`
	TolGrad float64 `mapstructure:"tol_grad" json:"tol_grad"`

	// T0 is the first trial step size.
	T0 float64 `mapstructure:"t0" json:"t0"`
	// Beta is the backtracking shrink factor, in (0, 1).
	Beta float64 `mapstructure:"beta" json:"beta"`
	// MaxBacktrack bounds the shrinks per iteration.
	MaxBacktrack int `mapstructure:"max_backtrack" json:"max_backtrack"`

	// AdaptiveRestart resets momentum whenever the objective would increase.
	AdaptiveRestart bool `mapstructure:"adaptive_restart" json:"adaptive_restart"`
	// StepGrowth lets an accepted step that needed no shrink grow by 1/Beta
	// for the next iteration.
	StepGrowth bool `mapstructure:"step_growth" json:"step_growth"`
	// EpsDecrease is the relative slack on the sufficient-decrease test.
	EpsDecrease float64 `mapstructure:"eps_decrease" json:"eps_decrease"`
	// InitialStep selects where each search starts: InitialStepPrevious
	// (also the empty value) or InitialStepBB. T0 seeds the first search
	// either way.
	InitialStep string `mapstructure:"initial_step" json:"initial_step"`

	// MaxFunEvals caps calls of the smooth oracle (0 = unlimited).
	MaxFunEvals int `mapstructure:"max_fun_evals" json:"max_fun_evals"`
	// MaxDuration is a wall-clock budget (0 = unlimited).
	MaxDuration time.Duration `mapstructure:"max_duration" json:"max_duration"`

	// LogEvery emits a debug log line every N iterations (0 = never).
	LogEvery int `mapstructure:"log_every" json:"log_every"`

	// Recorder, when set, receives every IterationRecord as it is appended.
	Recorder func(IterationRecord) `mapstructure:"-" json:"-"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxIter:      1000,
		TolF:         1e-8,
		TolX:         1e-8,
		TolGrad:      1e-6,
		T0:           1.0,
		Beta:         0.5,
		MaxBacktrack: 100,
		EpsDecrease:  1e-12,
		InitialStep:  InitialStepPrevious,
	}
}

// Validate checks every option and returns the first *ConfigError found.
func (o Options) Validate() error {
	if o.MaxIter <= 0 {
		return &ConfigError{Field: "max_iter", Value: o.MaxIter, Reason: "must be positive"}
	}
	for _, tol := range []struct {
		name string
		v    float64
	}{
		{"tol_f", o.TolF},
		{"tol_x", o.TolX},
		{"tol_grad", o.TolGrad},
		{"eps_decrease", o.EpsDecrease},
	} {
		if tol.v < 0 || math.IsNaN(tol.v) || math.IsInf(tol.v, 0) {
			return &ConfigError{Field: tol.name, Value: tol.v, Reason: "must be finite and non-negative"}
		}
	}
	if !(o.T0 > 0) || math.IsInf(o.T0, 0) {
		return &ConfigError{Field: "t0", Value: o.T0, Reason: "must be finite and positive"}
	}
	if !(o.Beta > 0 && o.Beta < 1) {
		return &ConfigError{Field: "beta", Value: o.Beta, Reason: "must lie in (0, 1)"}
	}
	switch o.InitialStep {
	case "", InitialStepPrevious, InitialStepBB:
	default:
		return &ConfigError{Field: "initial_step", Value: o.InitialStep, Reason: `must be "previous" or "bb"`}
	}
	if o.MaxBacktrack < 0 {
		return &ConfigError{Field: "max_backtrack", Value: o.MaxBacktrack, Reason: "cannot be negative"}
	}
	if o.MaxFunEvals < 0 {
		return &ConfigError{Field: "max_fun_evals", Value: o.MaxFunEvals, Reason: "cannot be negative"}
	}
	if o.MaxDuration < 0 {
		return &ConfigError{Field: "max_duration", Value: o.MaxDuration, Reason: "cannot be negative"}
	}
	if o.LogEvery < 0 {
		return &ConfigError{Field: "log_every", Value: o.LogEvery, Reason: "cannot be negative"}
	}
	return nil
}

// DecodeOptions builds Options from a flat key/value mapping, starting from
// DefaultOptions. Unknown keys are rejected so typos surface immediately.
func DecodeOptions(raw map[string]interface{}) (Options, error) {
	opts := DefaultOptions()
	if len(raw) == 0 {
		return opts, nil
	}

	// mapstructure flattens hook errors into strings; keep the first one
	// typed so callers see the offending value.
	var hookErr *ConfigError
	strict := func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if err := checkNumber(from, to, data); err != nil {
			if hookErr == nil {
				hookErr = err
			}
			return nil, err
		}
		return data, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			strict,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		ErrorUnused: true,
		Result:      &opts,
	})
	if err != nil {
		return Options{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		if hookErr != nil {
			return Options{}, hookErr
		}
		return Options{}, &ConfigError{Field: "options", Value: raw, Reason: err.Error()}
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// checkNumber rejects numeric input that the weak conversions would silently
// reinterpret: bare numbers for durations and fractional values for integers.
func checkNumber(from, to reflect.Type, data interface{}) *ConfigError {
	if !isNumeric(from.Kind()) {
		return nil
	}
	if to == durationType {
		return &ConfigError{
			Field:  "max_duration",
			Value:  data,
			Reason: fmt.Sprintf("needs a unit, e.g. %q", fmt.Sprintf("%vs", data)),
		}
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if from.Kind() == reflect.Float32 || from.Kind() == reflect.Float64 {
			if v := reflect.ValueOf(data).Float(); v != math.Trunc(v) {
				return &ConfigError{Field: "options", Value: data, Reason: "integer option given a fractional value"}
			}
		}
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
