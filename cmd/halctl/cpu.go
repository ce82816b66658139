package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kernelhal/internal/cpuinfo"
	"github.com/samcharles93/kernelhal/internal/logger"
	"github.com/samcharles93/kernelhal/internal/tuning"
)

type cpuReport struct {
	Cores      []cpuinfo.Core  `json:"cores"`
	Big        []int           `json:"big"`
	Little     []int           `json:"little"`
	Error      string          `json:"error,omitempty"`
	GOMAXPROCS int             `json:"gomaxprocs"`
	Variant    string          `json:"variant,omitempty"`
	Features   map[string]bool `json:"features"`
	Threads    int             `json:"threads"`
	Affinity   string          `json:"affinity"`
	CPUIDs     []int           `json:"cpu_ids,omitempty"`
}

func cpuCmd() *cli.Command {
	return &cli.Command{
		Name:  "cpu",
		Usage: "Show core frequencies, the big.LITTLE split and the thread policy",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			prober := cpuinfo.Default()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()
			rt.Workers()

			report := cpuReport{
				GOMAXPROCS: runtime.GOMAXPROCS(0),
				Variant:    cpuinfo.Variant(),
				Features:   cpuinfo.Features(),
			}
			cores, err := prober.Cores()
			if err != nil {
				log.Warn("core frequencies unavailable", "error", err)
			}
			report.Cores = cores
			big, little, err := rt.GetBigLittleCoreIDs()
			if err != nil {
				report.Error = err.Error()
			}
			report.Big, report.Little = big, little
			policy := rt.ThreadPolicy()
			report.Threads, report.Affinity, report.CPUIDs = policy.NumThreads, policy.Policy.String(), policy.CPUIDs

			return emit(os.Stdout, report, func(w io.Writer) error {
				return printCPU(w, report)
			})
		},
	}
}

func printCPU(w io.Writer, r cpuReport) error {
	for _, c := range r.Cores {
		if _, err := fmt.Fprintf(w, "cpu%-3d %8.2f MHz\n", c.ID, float64(c.MaxFreqKHz)/1000); err != nil {
			return err
		}
	}
	if r.Error != "" {
		fmt.Fprintf(w, "big.LITTLE: unavailable (%s)\n", r.Error)
	} else {
		fmt.Fprintf(w, "big:    %v\nlittle: %v\n", r.Big, r.Little)
	}
	var feats []string
	for name, ok := range r.Features {
		if ok {
			feats = append(feats, name)
		}
	}
	slices.Sort(feats)
	fmt.Fprintf(w, "vector: %s %v\n", cmp.Or(r.Variant, "scalar"), feats)
	policy := r.Affinity
	if policy == tuning.AffinityNone.String() && len(r.CPUIDs) > 0 {
		policy = "pinned"
	}
	_, err := fmt.Fprintf(w, "threads: %d (%s) cpu_ids=%v gomaxprocs=%d\n", r.Threads, policy, r.CPUIDs, r.GOMAXPROCS)
	return err
}
