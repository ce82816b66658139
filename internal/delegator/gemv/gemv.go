// Package gemv provides the batched matrix-vector multiply delegate.
//
// For every batch index b and output row i:
//
//	output[b,i] = bias[i] + sum_k lhs[b|0,i,k] * rhs[b|0,k]
//
// where the batch index of lhs and rhs collapses to 0 when the operand is not
// batched, and bias is optional.
package gemv

import (
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/kernelhal/internal/delegator"
	"github.com/samcharles93/kernelhal/internal/status"
	"github.com/samcharles93/kernelhal/internal/tensor"
)

// Op is the operation tag gemv delegators register under.
const Op = "gemv"

// VariantReference is the portable CPU implementation.
const VariantReference = "reference"

// Gemv is the compute contract every gemv variant implements.
type Gemv interface {
	delegator.OpDelegator
	Compute(ctx *delegator.Context, lhs, rhs, bias *tensor.Tensor,
		batch, lhsHeight, lhsWidth int, lhsBatched, rhsBatched bool,
		output *tensor.Tensor) error
}

// Signature returns the signature of the reference variant for dt.
func Signature(dt tensor.DType) delegator.Signature {
	return delegator.Signature{Op: Op, Variant: VariantReference, Device: tensor.CPU, DType: dt}
}

// Registrations lists the gemv variants provided by this package.
func Registrations() []delegator.Registration {
	dtypes := []tensor.DType{tensor.F32, tensor.F16, tensor.BF16}
	regs := make([]delegator.Registration, 0, len(dtypes))
	for _, dt := range dtypes {
		regs = append(regs, delegator.Registration{Signature: Signature(dt), Creator: newReference})
	}
	return regs
}

// inlineWork is the multiply-add count below which Compute stays on the
// calling goroutine.
const inlineWork = 1 << 14

type reference struct {
	delegator.Base
}

func newReference(p delegator.Param) (delegator.OpDelegator, error) {
	const op = "gemv.New"
	if p.Op() != Op {
		return nil, status.New(status.InvalidArgs, op, "param op %q is not %q", p.Op(), Op)
	}
	if p.Device() != tensor.CPU {
		return nil, status.New(status.Unsupported, op, "device %s", p.Device())
	}
	if p.Layout() != delegator.RowMajor {
		return nil, status.New(status.Unsupported, op, "layout %s", p.Layout())
	}
	if p.DType().Size() == 0 {
		return nil, status.New(status.Unsupported, op, "dtype %s", p.DType())
	}
	return &reference{Base: delegator.NewBase(p)}, nil
}

// Compute implements Gemv.
func (g *reference) Compute(ctx *delegator.Context, lhs, rhs, bias *tensor.Tensor,
	batch, lhsHeight, lhsWidth int, lhsBatched, rhsBatched bool,
	output *tensor.Tensor,
) error {
	const op = "gemv.Compute"
	if err := g.check(lhs, rhs, bias, batch, lhsHeight, lhsWidth, lhsBatched, rhsBatched, output); err != nil {
		return status.Wrap(status.InvalidArgs, op, err)
	}

	outShape := []int{batch, lhsHeight}
	if batch == 1 {
		outShape = []int{lhsHeight}
	}
	if err := output.Resize(outShape...); err != nil {
		return err
	}

	a := float32View(lhs)
	x := float32View(rhs)
	var b []float32
	if bias != nil {
		b = float32View(bias)
	}
	dst := output.Float32Data()
	if dst == nil {
		dst = make([]float32, output.Size())
	}

	h, w := lhsHeight, lhsWidth
	rows := batch * h
	kernel := func(rs, re int) {
		for r := rs; r < re; r++ {
			bi, i := r/h, r%h
			lb, rb := 0, 0
			if lhsBatched {
				lb = bi
			}
			if rhsBatched {
				rb = bi
			}
			row := a[(lb*h+i)*w : (lb*h+i+1)*w]
			vec := x[rb*w : (rb+1)*w]
			sum := dot(row, vec)
			if b != nil {
				sum += b[i]
			}
			dst[r] = sum
		}
	}

	switch {
	case rows*w < inlineWork || rows == 1:
		kernel(0, rows)
	case ctx != nil && ctx.Workers != nil:
		ctx.Workers.ParallelFor(rows, kernel)
	default:
		parallelFor(rows, kernel)
	}

	if output.DType() != tensor.F32 {
		output.SetFloat32s(dst)
	}
	return nil
}

func (g *reference) check(lhs, rhs, bias *tensor.Tensor,
	batch, h, w int, lhsBatched, rhsBatched bool, output *tensor.Tensor,
) error {
	if lhs == nil || rhs == nil || output == nil {
		return fmt.Errorf("lhs, rhs and output are required")
	}
	if batch < 1 || h < 1 || w < 1 {
		return fmt.Errorf("invalid dims batch=%d height=%d width=%d", batch, h, w)
	}
	dt := g.Param().DType()
	if lhs.DType() != dt {
		return fmt.Errorf("lhs dtype %s, delegator dtype %s", lhs.DType(), dt)
	}
	if output.DType() != dt {
		return fmt.Errorf("output dtype %s, delegator dtype %s", output.DType(), dt)
	}

	var lhsForms, rhsForms [][]int
	if lhsBatched {
		lhsForms = [][]int{{batch, h, w}}
	} else {
		lhsForms = [][]int{{h, w}, {1, h, w}}
	}
	if rhsBatched {
		rhsForms = [][]int{{batch, w}, {batch, w, 1}}
	} else {
		rhsForms = [][]int{{w}, {w, 1}, {1, w}}
	}
	if !matchShape(lhs.Shape(), lhsForms) {
		return fmt.Errorf("lhs shape %v does not match %v", lhs.Shape(), lhsForms)
	}
	if !matchShape(rhs.Shape(), rhsForms) {
		return fmt.Errorf("rhs shape %v does not match %v", rhs.Shape(), rhsForms)
	}
	if bias != nil && !matchShape(bias.Shape(), [][]int{{h}}) {
		return fmt.Errorf("bias shape %v, want [%d]", bias.Shape(), h)
	}
	return nil
}

func matchShape(shape []int, forms [][]int) bool {
	for _, f := range forms {
		if slices.Equal(shape, f) {
			return true
		}
	}
	return false
}

func float32View(t *tensor.Tensor) []float32 {
	if d := t.Float32Data(); d != nil {
		return d
	}
	return t.Float32s()
}

func dot(row, x []float32) float32 {
	var sum float32
	j := 0
	for ; j+3 < len(row); j += 4 {
		sum += row[j]*x[j] + row[j+1]*x[j+1] + row[j+2]*x[j+2] + row[j+3]*x[j+3]
	}
	for ; j < len(row); j++ {
		sum += row[j] * x[j]
	}
	return sum
}

// parallelFor splits [0, n) across GOMAXPROCS goroutines for callers that
// did not supply a worker pool.
func parallelFor(n int, fn func(start, end int)) {
	workers := min(runtime.GOMAXPROCS(0), n)
	chunk := (n + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for rs := 0; rs < n; rs += chunk {
		re := min(rs+chunk, n)
		g.Go(func() error {
			fn(rs, re)
			return nil
		})
	}
	_ = g.Wait()
}
