// Package delegator selects operation kernels at graph-build time.
//
// A delegator is a hardware, layout and dtype specialised implementation of a
// single operation's compute step. Executors never construct one directly:
// they resolve a Signature through a Registry once, keep the returned
// instance, and call it repeatedly during inference.
package delegator

import (
	"fmt"
	"strings"

	"github.com/samcharles93/kernelhal/internal/tensor"
)

// Signature identifies a registered creator.
type Signature struct {
	Op      string
	Variant string
	Device  tensor.Device
	DType   tensor.DType
}

// String renders op/variant/device/dtype.
func (s Signature) String() string {
	return s.Op + "/" + s.Variant + "/" + s.Device.String() + "/" + s.DType.String()
}

// ParseSignature parses the form produced by String.
func ParseSignature(s string) (Signature, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 {
		return Signature{}, fmt.Errorf("%w: %q (expected op/variant/device/dtype)", ErrInvalidSignature, s)
	}
	dev, err := tensor.ParseDevice(parts[2])
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	dt, err := tensor.ParseDType(parts[3])
	if err != nil {
		return Signature{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig := Signature{Op: parts[0], Variant: parts[1], Device: dev, DType: dt}
	if err := sig.validate(); err != nil {
		return Signature{}, err
	}
	return sig, nil
}

func (s Signature) validate() error {
	if strings.TrimSpace(s.Op) == "" || strings.TrimSpace(s.Variant) == "" {
		return fmt.Errorf("%w: empty op or variant in %q", ErrInvalidSignature, s.String())
	}
	return nil
}

// Layout describes how operands are arranged in memory.
type Layout string

const (
	RowMajor Layout = "row_major"
	ColMajor Layout = "col_major"
)

// Param is the immutable descriptor a delegator is built from.
type Param struct {
	sig    Signature
	layout Layout
}

// NewParam returns a Param for sig. An empty layout means RowMajor.
func NewParam(sig Signature, layout Layout) Param {
	if layout == "" {
		layout = RowMajor
	}
	return Param{sig: sig, layout: layout}
}

func (p Param) Signature() Signature { return p.sig }

func (p Param) Op() string { return p.sig.Op }

func (p Param) Variant() string { return p.sig.Variant }

func (p Param) Device() tensor.Device { return p.sig.Device }

func (p Param) DType() tensor.DType { return p.sig.DType }

func (p Param) Layout() Layout { return p.layout }

// OpDelegator is implemented by every concrete kernel.
type OpDelegator interface {
	Param() Param
}

// Base can be embedded by delegators to satisfy OpDelegator.
type Base struct {
	param Param
}

func NewBase(p Param) Base { return Base{param: p} }

func (b Base) Param() Param { return b.param }
