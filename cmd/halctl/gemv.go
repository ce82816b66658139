package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kernelhal/internal/delegator"
	"github.com/samcharles93/kernelhal/internal/delegator/gemv"
	"github.com/samcharles93/kernelhal/internal/kernels"
	"github.com/samcharles93/kernelhal/internal/tensor"
)

type gemvResult struct {
	Signature string    `json:"signature"`
	Shape     []int     `json:"shape"`
	Output    []float32 `json:"output"`
}

func gemvCmd() *cli.Command {
	var (
		variant    string
		dtype      string
		batch      int64
		height     int64
		width      int64
		lhsBatched bool
		rhsBatched bool
		lhsVals    string
		rhsVals    string
		biasVals   string
	)

	return &cli.Command{
		Name:  "gemv",
		Usage: "Run a gemv delegator on literal inputs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "variant", Value: gemv.VariantReference, Usage: "kernel variant", Destination: &variant},
			&cli.StringFlag{Name: "dtype", Value: "f32", Usage: "element type (f32, f16, bf16)", Destination: &dtype},
			&cli.Int64Flag{Name: "batch", Aliases: []string{"b"}, Value: 1, Usage: "batch size", Destination: &batch},
			&cli.Int64Flag{Name: "height", Usage: "lhs rows", Required: true, Destination: &height},
			&cli.Int64Flag{Name: "width", Usage: "lhs columns", Required: true, Destination: &width},
			&cli.BoolFlag{Name: "lhs-batched", Usage: "lhs holds one matrix per batch", Destination: &lhsBatched},
			&cli.BoolFlag{Name: "rhs-batched", Usage: "rhs holds one vector per batch", Destination: &rhsBatched},
			&cli.StringFlag{Name: "lhs", Usage: "row-major lhs values, comma separated", Required: true, Destination: &lhsVals},
			&cli.StringFlag{Name: "rhs", Usage: "rhs values, comma separated", Required: true, Destination: &rhsVals},
			&cli.StringFlag{Name: "bias", Usage: "optional bias values, comma separated", Destination: &biasVals},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dt, err := tensor.ParseDType(dtype)
			if err != nil {
				return err
			}
			b, h, w := int(batch), int(height), int(width)

			lhs, err := literalTensor(dt, lhsVals, shapeFor(lhsBatched, b, h, w)...)
			if err != nil {
				return fmt.Errorf("--lhs: %w", err)
			}
			rhs, err := literalTensor(dt, rhsVals, shapeFor(rhsBatched, b, w)...)
			if err != nil {
				return fmt.Errorf("--rhs: %w", err)
			}
			var bias *tensor.Tensor
			if biasVals != "" {
				if bias, err = literalTensor(dt, biasVals, h); err != nil {
					return fmt.Errorf("--bias: %w", err)
				}
			}

			reg, err := kernels.NewRegistry()
			if err != nil {
				return err
			}
			sig := gemv.Signature(dt)
			sig.Variant = variant
			g, err := delegator.New[gemv.Gemv](reg, sig, delegator.RowMajor)
			if err != nil {
				return err
			}

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			out, err := tensor.New(dt)
			if err != nil {
				return err
			}
			if err := g.Compute(rt.OpContext(), lhs, rhs, bias, b, h, w, lhsBatched, rhsBatched, out); err != nil {
				return err
			}

			res := gemvResult{Signature: sig.String(), Shape: out.Shape(), Output: out.Float32s()}
			return emit(os.Stdout, res, func(wr io.Writer) error {
				return printMatrix(wr, res.Output, res.Shape)
			})
		},
	}
}

// shapeFor prepends the batch dimension when batched is set.
func shapeFor(batched bool, batch int, dims ...int) []int {
	if batched {
		return append([]int{batch}, dims...)
	}
	return dims
}

func literalTensor(dt tensor.DType, values string, shape ...int) (*tensor.Tensor, error) {
	data, err := parseFloats(values)
	if err != nil {
		return nil, err
	}
	return tensor.FromFloat32(dt, data, shape...)
}

func printMatrix(w io.Writer, data []float32, shape []int) error {
	cols := shape[len(shape)-1]
	for i := 0; i < len(data); i += cols {
		for j, v := range data[i : i+cols] {
			if j > 0 {
				if _, err := io.WriteString(w, " "); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%g", v); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
