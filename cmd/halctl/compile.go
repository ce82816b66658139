package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kernelhal/internal/kernelcache"
	"github.com/samcharles93/kernelhal/internal/logger"
	"github.com/samcharles93/kernelhal/internal/tensor"
	"github.com/samcharles93/kernelhal/internal/tuning"
)

type compileResult struct {
	Program string `json:"program"`
	Key     string `json:"key"`
	Bytes   int    `json:"bytes"`
	Cached  bool   `json:"cached"`
	Output  string `json:"output,omitempty"`
}

// execCompiler runs an offline compiler with the program source on stdin
// and the build options appended to its arguments. Stdout is the binary.
func execCompiler(command string) kernelcache.CompilerFunc {
	argv := strings.Fields(command)
	return func(ctx context.Context, p kernelcache.Program) ([]byte, error) {
		if len(argv) == 0 {
			return nil, kernelcache.ErrNoCompiler
		}
		args := append(argv[1:len(argv):len(argv)], strings.Fields(p.Options)...)
		cmd := exec.CommandContext(ctx, argv[0], args...)
		cmd.Stdin = strings.NewReader(p.Source)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return nil, fmt.Errorf("%s: %w: %s", argv[0], err, msg)
			}
			return nil, fmt.Errorf("%s: %w", argv[0], err)
		}
		return stdout.Bytes(), nil
	}
}

func programName(path, name string) string {
	if name != "" {
		return name
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// compileProgram resolves prog through the kernel cache backed by the
// storage factory installed on rt.
func compileProgram(ctx context.Context, rt *tuning.Runtime, partition string,
	prog kernelcache.Program, comp kernelcache.Compiler,
) ([]byte, compileResult, error) {
	cache := kernelcache.FromContext(rt.OpContext(), partition)
	defer func() { _ = cache.Close() }()
	bin, err := cache.Get(ctx, prog, comp)
	if err != nil {
		return nil, compileResult{}, err
	}
	stats := cache.Stats()
	if stats.FlushErrors > 0 {
		logger.FromContext(ctx).Warn("binary not persisted", "partition", partition)
	}
	return bin, compileResult{
		Program: prog.Name,
		Key:     prog.Key(),
		Bytes:   len(bin),
		Cached:  stats.Hits > 0,
	}, nil
}

func cacheCompileCmd() *cli.Command {
	var (
		partition string
		name      string
		options   string
		device    string
		compiler  string
		out       string
	)
	return &cli.Command{
		Name:      "compile",
		Usage:     "Compile a device program through the kernel cache, reusing a cached binary when present",
		ArgsUsage: "<source-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "partition", Aliases: []string{"p"}, Value: "opencl", Usage: "cache partition", Destination: &partition},
			&cli.StringFlag{Name: "name", Usage: "program name (default: source file base name)", Destination: &name},
			&cli.StringFlag{Name: "options", Usage: "build options passed to the compiler", Destination: &options},
			&cli.StringFlag{Name: "device", Value: "gpu", Usage: "target device: cpu|gpu", Destination: &device},
			&cli.StringFlag{
				Name:        "compiler",
				Usage:       "offline compiler command; reads source on stdin, writes the binary to stdout",
				Sources:     cli.EnvVars("KERNELHAL_COMPILER"),
				Destination: &compiler,
			},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write the binary to this file", Destination: &out},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return fmt.Errorf("%w: halctl cache compile <source-file>", errUsage)
			}
			path := cmd.Args().First()
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			dev, err := tensor.ParseDevice(device)
			if err != nil {
				return err
			}

			prog := kernelcache.Program{
				Name:    programName(path, name),
				Source:  string(src),
				Options: options,
				Device:  dev,
			}
			var comp kernelcache.Compiler
			if compiler != "" {
				comp = execCompiler(compiler)
			}

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			bin, res, err := compileProgram(ctx, rt, partition, prog, comp)
			if err != nil {
				return err
			}
			if out != "" {
				if err := os.WriteFile(out, bin, 0o644); err != nil {
					return err
				}
				res.Output = out
			}
			return emit(os.Stdout, res, func(w io.Writer) error {
				state := "compiled"
				if res.Cached {
					state = "cached"
				}
				_, err := fmt.Fprintf(w, "%s %s (%d bytes, %s)\n", res.Program, res.Key, res.Bytes, state)
				return err
			})
		},
	}
}
