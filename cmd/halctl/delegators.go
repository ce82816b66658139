package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kernelhal/internal/kernels"
)

func delegatorsCmd() *cli.Command {
	return &cli.Command{
		Name:    "delegators",
		Aliases: []string{"ls"},
		Usage:   "List registered kernel signatures",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			reg, err := kernels.NewRegistry()
			if err != nil {
				return err
			}
			sigs := reg.Signatures()
			names := make([]string, 0, len(sigs))
			for _, sig := range sigs {
				names = append(names, sig.String())
			}
			return emit(os.Stdout, names, func(w io.Writer) error {
				for _, n := range names {
					if _, err := fmt.Fprintln(w, n); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
