// Package inference defines the boundary between the scanning pipeline and
// the runtime that executes neural network models.
//
// Stages only ever see an Engine: a fixed input shape, a fixed output shape
// and a Run method that maps one float32 tensor buffer to another. The
// ONNX Runtime backend in this package is one implementation; tests supply
// their own.
package inference

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ironsheep/label-ocr-mcp/internal/errs"
)

// Dynamic marks a dimension whose size is decided per run.
const Dynamic int64 = -1

// Shape is a tensor shape, outermost dimension first.
type Shape []int64

// Elements returns the element count, or -1 if any dimension is dynamic.
func (s Shape) Elements() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		if d < 0 {
			return -1
		}
		n *= int(d)
	}
	return n
}

// IsStatic reports whether every dimension is known.
func (s Shape) IsStatic() bool {
	return s.Elements() >= 0
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		if d < 0 {
			parts[i] = "?"
		} else {
			parts[i] = strconv.FormatInt(d, 10)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Resolve checks a model's declared shape against the shape a stage
// expects and returns the shape the stage should use.
//
// Ranks must agree. A dimension that is dynamic in either shape takes the
// other's value; two static dimensions must be equal. Any disagreement is
// reported as errs.ErrModelShapeMismatch.
func Resolve(declared, expected Shape) (Shape, error) {
	if len(declared) != len(expected) {
		return nil, fmt.Errorf("declared %v, expected %v: %w", declared, expected, errs.ErrModelShapeMismatch)
	}
	out := make(Shape, len(expected))
	for i := range expected {
		d, e := declared[i], expected[i]
		switch {
		case d <= 0:
			out[i] = e
		case e < 0:
			out[i] = d
		case d == e:
			out[i] = d
		default:
			return nil, fmt.Errorf("declared %v, expected %v (dim %d): %w", declared, expected, i, errs.ErrModelShapeMismatch)
		}
	}
	return out, nil
}

// Engine runs a single loaded model.
//
// Run receives a native-order float32 buffer of exactly
// InputShape().Elements() values and returns the output buffer. Engines
// are not required to be reentrant; callers serialize Run.
type Engine interface {
	InputShape() Shape
	OutputShape() Shape
	Run(ctx context.Context, input []byte) ([]byte, error)
	Close() error
}

// Loader opens models by name.
//
// in and out are the shapes the caller expects; implementations validate
// the model against them with Resolve before returning.
type Loader interface {
	Load(name string, in, out Shape) (Engine, error)
}

// CheckInput verifies that buf holds exactly one tensor of shape s.
func CheckInput(s Shape, buf []byte) error {
	n := s.Elements()
	if n < 0 {
		return nil
	}
	if len(buf) != n*4 {
		return fmt.Errorf("input buffer is %d bytes, shape %v needs %d: %w", len(buf), s, n*4, errs.ErrModelShapeMismatch)
	}
	return nil
}
