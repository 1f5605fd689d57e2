package yolocam

import (
	"fmt"
	"strings"
)

// Shape holds the dimensions of a tensor, outermost first
type Shape []int64

// NumElements returns the number of elements a tensor of this shape holds.
// A shape with a dynamic (negative) dimension holds zero elements
func (s Shape) NumElements() int64 {

	if len(s) == 0 {
		return 0
	}

	n := int64(1)

	for _, d := range s {
		if d < 0 {
			return 0
		}
		n *= d
	}

	return n
}

// Equal reports if both shapes have the same dimensions
func (s Shape) Equal(o Shape) bool {

	if len(s) != len(o) {
		return false
	}

	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}

	return true
}

// Clone returns a copy of the shape
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// String returns the shape formatted as [d0, d1, ...]
func (s Shape) String() string {

	dims := make([]string, len(s))

	for i, d := range s {
		dims[i] = fmt.Sprintf("%d", d)
	}

	return "[" + strings.Join(dims, ", ") + "]"
}

// Tensor is a dense float32 tensor stored in row major order
type Tensor struct {
	// Shape are the tensor dimensions
	Shape Shape
	// Data holds Shape.NumElements() values
	Data []float32
}

// NewTensor returns a tensor wrapping data, the number of values must match
// the shape
func NewTensor(shape Shape, data []float32) (*Tensor, error) {

	if int64(len(data)) != shape.NumElements() {
		return nil, fmt.Errorf("tensor data has %d values, shape %s needs %d",
			len(data), shape, shape.NumElements())
	}

	return &Tensor{
		Shape: shape.Clone(),
		Data:  data,
	}, nil
}

// NewEmptyTensor returns a zero filled tensor of the given shape
func NewEmptyTensor(shape Shape) *Tensor {
	return &Tensor{
		Shape: shape.Clone(),
		Data:  make([]float32, shape.NumElements()),
	}
}

// String returns a short description of the tensor
func (t *Tensor) String() string {
	return fmt.Sprintf("shape=%s, n_elems=%d", t.Shape, len(t.Data))
}
