package tensor

import (
	"fmt"
	"strings"
)

// DType describes the element encoding of a tensor.
type DType uint8

const (
	F32 DType = iota
	F16
	BF16
)

// Size returns the encoded element size in bytes.
func (d DType) Size() int {
	switch d {
	case F32:
		return 4
	case F16, BF16:
		return 2
	default:
		return 0
	}
}

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F16:
		return "f16"
	case BF16:
		return "bf16"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// ParseDType accepts the names produced by String.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f32", "float32":
		return F32, nil
	case "f16", "float16", "half":
		return F16, nil
	case "bf16", "bfloat16":
		return BF16, nil
	default:
		return 0, fmt.Errorf("unknown dtype %q (expected f32, f16, or bf16)", s)
	}
}

// Device is the placement of a tensor's storage.
type Device uint8

const (
	CPU Device = iota
	GPU
)

func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return fmt.Sprintf("device(%d)", uint8(d))
	}
}

// ParseDevice accepts the names produced by String.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cpu":
		return CPU, nil
	case "gpu":
		return GPU, nil
	default:
		return 0, fmt.Errorf("unknown device %q (expected cpu or gpu)", s)
	}
}
