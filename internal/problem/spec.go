// Package problem holds a small catalogue of composite problems described
// by YAML or JSON files. It feeds the CLI and the job server; the solver
// itself never depends on it.
package problem

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind names a problem family.
type Kind string

const (
	// KindQuadratic is f(x) = 0.5 x'Ax - b'x with A symmetric, g = 0.
	KindQuadratic Kind = "quadratic"
	// KindLasso is f(x) = 0.5 ||Ax - b||^2 with g = lambda ||x||_1.
	KindLasso Kind = "lasso"
	// KindBoxQuadratic is the quadratic restricted to lower <= x <= upper.
	KindBoxQuadratic Kind = "box-quadratic"
	// KindRosenbrock is the extended Rosenbrock function, optionally boxed.
	KindRosenbrock Kind = "rosenbrock"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid problem")

// Spec is the on-disk description of a problem.
type Spec struct {
	Name   string      `yaml:"name" json:"name"`
	Kind   Kind        `yaml:"kind" json:"kind"`
	A      [][]float64 `yaml:"a,omitempty" json:"a,omitempty"`
	B      []float64   `yaml:"b,omitempty" json:"b,omitempty"`
	Lambda float64     `yaml:"lambda,omitempty" json:"lambda,omitempty"`
	// Lower and Upper are the feasible box for box-quadratic and rosenbrock
	// and the warm-start search box for every kind.
	Lower []float64 `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper []float64 `yaml:"upper,omitempty" json:"upper,omitempty"`
	// Dim is only needed when nothing else fixes the dimension.
	Dim     int                    `yaml:"dim,omitempty" json:"dim,omitempty"`
	X0      []float64              `yaml:"x0,omitempty" json:"x0,omitempty"`
	Options map[string]interface{} `yaml:"options,omitempty" json:"options,omitempty"`
}

// Load reads a YAML problem file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes a problem from YAML. JSON documents are valid YAML and are
// accepted as well.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse problem: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Dimension returns the number of variables implied by the problem.
func (s *Spec) Dimension() int {
	switch {
	case len(s.X0) > 0:
		return len(s.X0)
	case s.Kind == KindLasso && len(s.A) > 0:
		return len(s.A[0])
	case len(s.B) > 0:
		return len(s.B)
	case len(s.Lower) > 0:
		return len(s.Lower)
	}
	return s.Dim
}

// HasBox reports whether both bounds are present.
func (s *Spec) HasBox() bool {
	return len(s.Lower) > 0 && len(s.Upper) > 0
}

// Validate checks shapes and values without building any oracle.
func (s *Spec) Validate() error {
	n := s.Dimension()
	if n <= 0 {
		return invalid("cannot determine the problem dimension")
	}
	if s.Dim != 0 && s.Dim != n {
		return invalid("dim is %d but the data has dimension %d", s.Dim, n)
	}
	if len(s.X0) > 0 && len(s.X0) != n {
		return invalid("x0 has length %d, want %d", len(s.X0), n)
	}
	if err := finite("x0", s.X0); err != nil {
		return err
	}

	switch s.Kind {
	case KindQuadratic, KindBoxQuadratic:
		if len(s.A) != n {
			return invalid("a must be %dx%d, has %d rows", n, n, len(s.A))
		}
		if len(s.B) != n {
			return invalid("b has length %d, want %d", len(s.B), n)
		}
		for i, row := range s.A {
			if len(row) != n {
				return invalid("row %d of a has length %d, want %d", i, len(row), n)
			}
		}
		for i, row := range s.A {
			for j := range row {
				if row[j] != s.A[j][i] {
					return invalid("a must be symmetric: a[%d][%d] != a[%d][%d]", i, j, j, i)
				}
			}
		}
	case KindLasso:
		if len(s.A) == 0 {
			return invalid("lasso needs a design matrix a")
		}
		if len(s.B) != len(s.A) {
			return invalid("b has length %d, want %d (rows of a)", len(s.B), len(s.A))
		}
		for i, row := range s.A {
			if len(row) != n {
				return invalid("row %d of a has length %d, want %d", i, len(row), n)
			}
		}
		if s.Lambda < 0 || math.IsNaN(s.Lambda) || math.IsInf(s.Lambda, 0) {
			return invalid("lambda must be finite and non-negative, got %v", s.Lambda)
		}
	case KindRosenbrock:
		if n < 2 {
			return invalid("rosenbrock needs at least 2 variables")
		}
	case "":
		return invalid("kind is required")
	default:
		return invalid("unknown kind %q", s.Kind)
	}

	for i, row := range s.A {
		if err := finite(fmt.Sprintf("a[%d]", i), row); err != nil {
			return err
		}
	}
	if err := finite("b", s.B); err != nil {
		return err
	}

	if s.Kind == KindBoxQuadratic && !s.HasBox() {
		return invalid("box-quadratic needs lower and upper")
	}
	if len(s.Lower) > 0 || len(s.Upper) > 0 {
		if len(s.Lower) != n || len(s.Upper) != n {
			return invalid("lower and upper must both have length %d", n)
		}
		for i := range s.Lower {
			if math.IsNaN(s.Lower[i]) || math.IsNaN(s.Upper[i]) || s.Lower[i] > s.Upper[i] {
				return invalid("bounds at %d are empty: [%v, %v]", i, s.Lower[i], s.Upper[i])
			}
		}
	}
	return nil
}

func finite(name string, v []float64) error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return invalid("%s[%d] is not finite", name, i)
		}
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
