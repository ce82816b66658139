// Package tensor is the minimal dense tensor the delegators read and write.
//
// F32 tensors keep their values in a []float32 for direct access. F16 and
// BF16 tensors keep little-endian raw bytes and are decoded on access, the
// same split the model weights use.
package tensor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	bfloat16 "github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/samcharles93/kernelhal/internal/status"
)

// MaxElements bounds a single allocation. Resize beyond it fails with
// status.ErrOutOfResources instead of attempting the allocation.
const MaxElements = 1 << 30

var (
	errNegativeDim      = errors.New("negative dimension")
	errUnsupportedDType = errors.New("unsupported dtype")
	errDataSize         = errors.New("data length does not match shape")
)

// Tensor is a row-major buffer with a shape, element type and placement.
type Tensor struct {
	shape  []int
	dtype  DType
	device Device

	data []float32 // F32 only
	raw  []byte    // F16/BF16 only
}

// New allocates a zeroed CPU tensor.
func New(dtype DType, shape ...int) (*Tensor, error) {
	t := &Tensor{dtype: dtype, device: CPU}
	if dtype.Size() == 0 {
		return nil, status.Wrap(status.Unsupported, "tensor.New", errUnsupportedDType)
	}
	if err := t.Resize(shape...); err != nil {
		return nil, err
	}
	return t, nil
}

// FromFloat32 builds a CPU tensor from f32 values, encoding them as dtype.
func FromFloat32(dtype DType, data []float32, shape ...int) (*Tensor, error) {
	n, err := numElements(shape)
	if err != nil {
		return nil, status.Wrap(status.InvalidArgs, "tensor.FromFloat32", err)
	}
	if n != len(data) {
		return nil, status.Wrap(status.InvalidArgs, "tensor.FromFloat32",
			fmt.Errorf("%w: shape %v holds %d, got %d", errDataSize, shape, n, len(data)))
	}
	t, err := New(dtype, shape...)
	if err != nil {
		return nil, err
	}
	t.SetFloat32s(data)
	return t, nil
}

// MustFromFloat32 is FromFloat32 for literals in tests and examples.
func MustFromFloat32(dtype DType, data []float32, shape ...int) *Tensor {
	t, err := FromFloat32(dtype, data, shape...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

func (t *Tensor) Rank() int { return len(t.shape) }

func (t *Tensor) DType() DType { return t.dtype }

func (t *Tensor) Device() Device { return t.device }

// Dim returns the size of dimension i. Negative i counts from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	if i < 0 || i >= len(t.shape) {
		panic("tensor: dimension index out of range")
	}
	return t.shape[i]
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	n := 1
	for _, d := range t.shape {
		n *= d
	}
	return n
}

// Resize changes the shape, reusing storage when its capacity suffices.
// Existing values are not preserved in any meaningful layout.
func (t *Tensor) Resize(shape ...int) error {
	n, err := numElements(shape)
	if err != nil {
		return status.Wrap(status.InvalidArgs, "tensor.Resize", err)
	}
	if n > MaxElements {
		return status.New(status.OutOfResources, "tensor.Resize", "%d elements exceeds limit %d", n, MaxElements)
	}
	t.shape = slices.Clone(shape)
	switch t.dtype {
	case F32:
		if cap(t.data) >= n {
			t.data = t.data[:n]
		} else {
			t.data = make([]float32, n)
		}
	case F16, BF16:
		nb := n * 2
		if cap(t.raw) >= nb {
			t.raw = t.raw[:nb]
		} else {
			t.raw = make([]byte, nb)
		}
	default:
		return status.Wrap(status.Unsupported, "tensor.Resize", errUnsupportedDType)
	}
	return nil
}

// Float32Data returns the backing slice of an F32 tensor, or nil for other dtypes.
func (t *Tensor) Float32Data() []float32 {
	if t.dtype != F32 {
		return nil
	}
	return t.data
}

// Float32s decodes every element into a new f32 slice.
func (t *Tensor) Float32s() []float32 {
	switch t.dtype {
	case F32:
		return slices.Clone(t.data)
	case BF16:
		return bfloat16.DecodeFloat32(t.raw)
	case F16:
		out := make([]float32, len(t.raw)/2)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(t.raw[i*2:])).Float32()
		}
		return out
	default:
		return nil
	}
}

// SetFloat32s encodes src into the tensor. len(src) must equal Size.
func (t *Tensor) SetFloat32s(src []float32) {
	if len(src) != t.Size() {
		panic("tensor: SetFloat32s length mismatch")
	}
	switch t.dtype {
	case F32:
		copy(t.data, src)
	case BF16:
		copy(t.raw, bfloat16.EncodeFloat32(src))
	case F16:
		for i, v := range src {
			binary.LittleEndian.PutUint16(t.raw[i*2:], float16.Fromfloat32(v).Bits())
		}
	}
}

// At returns the flat element i as f32.
func (t *Tensor) At(i int) float32 {
	switch t.dtype {
	case F32:
		return t.data[i]
	case BF16:
		return bfloat16.DecodeFloat32(t.raw[i*2 : i*2+2])[0]
	case F16:
		return float16.Frombits(binary.LittleEndian.Uint16(t.raw[i*2:])).Float32()
	default:
		panic("tensor: unsupported dtype")
	}
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%s, %s, %v)", t.dtype, t.device, t.shape)
}

func numElements(shape []int) (int, error) {
	n := 1
	maxInt := int(^uint(0) >> 1)
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: %d", errNegativeDim, d)
		}
		if d != 0 && n > maxInt/d {
			return 0, errors.New("tensor too large")
		}
		n *= d
	}
	return n, nil
}
