package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/logger"
)

var errUsage = errors.New("usage")

type partitionReport struct {
	Name       string         `json:"name"`
	Generation string         `json:"generation"`
	Entries    map[string]int `json:"entries"`
}

func cacheFactory(ctx context.Context) *kvstorage.FileStorageFactory {
	return kvstorage.NewFileStorageFactory(settings.CacheDir, kvstorage.WithLogger(logger.FromContext(ctx)))
}

func openPartition(ctx context.Context, name string) (*kvstorage.FileStorage, error) {
	st, err := cacheFactory(ctx).CreateStorage(name)
	if err != nil {
		return nil, err
	}
	if err := st.Load(); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st.(*kvstorage.FileStorage), nil
}

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and edit kernel cache partitions",
		Commands: []*cli.Command{
			cacheListCmd(),
			cacheGetCmd(),
			cachePutCmd(),
			cacheCompileCmd(),
		},
	}
}

func cacheListCmd() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List partitions, or the keys of one partition",
		ArgsUsage: "[partition]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				names, err := cacheFactory(ctx).Partitions()
				if err != nil {
					return err
				}
				return emit(os.Stdout, names, func(w io.Writer) error {
					for _, n := range names {
						if _, err := fmt.Fprintln(w, n); err != nil {
							return err
						}
					}
					return nil
				})
			}

			name := cmd.Args().First()
			st, err := openPartition(ctx, name)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			report := partitionReport{Name: name, Generation: st.Generation().String(), Entries: map[string]int{}}
			for _, k := range st.Keys() {
				v, _ := st.Find(k)
				report.Entries[k] = len(v)
			}
			return emit(os.Stdout, report, func(w io.Writer) error {
				fmt.Fprintf(w, "partition %s generation %s\n", report.Name, report.Generation)
				for _, k := range st.Keys() {
					if _, err := fmt.Fprintf(w, "%8d  %s\n", report.Entries[k], k); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func cacheGetCmd() *cli.Command {
	var raw bool
	return &cli.Command{
		Name:      "get",
		Usage:     "Print one cached value (hex unless --raw)",
		ArgsUsage: "<partition> <key>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "write the value bytes unchanged", Destination: &raw},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 2 {
				return fmt.Errorf("%w: halctl cache get <partition> <key>", errUsage)
			}
			name, key := cmd.Args().Get(0), cmd.Args().Get(1)
			st, err := openPartition(ctx, name)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			v, ok := st.Find(key)
			if !ok {
				return fmt.Errorf("key %q not found in partition %q", key, name)
			}
			if raw {
				_, err = os.Stdout.Write(v)
				return err
			}
			return emit(os.Stdout, map[string]string{"key": key, "value": hex.EncodeToString(v)}, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, hex.EncodeToString(v))
				return err
			})
		},
	}
}

func cachePutCmd() *cli.Command {
	var file string
	return &cli.Command{
		Name:      "put",
		Usage:     "Insert a value and flush the partition",
		ArgsUsage: "<partition> <key> [value]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read the value from a file ('-' for stdin)", Destination: &file},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() < 2 || args.Len() > 3 || (args.Len() == 3) == (file != "") {
				return fmt.Errorf("%w: halctl cache put <partition> <key> (<value> | --file path)", errUsage)
			}
			name, key := args.Get(0), args.Get(1)

			var value []byte
			switch {
			case args.Len() == 3:
				value = []byte(args.Get(2))
			case file == "-":
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				value = b
			default:
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				value = b
			}

			st, err := openPartition(ctx, name)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			if !st.Insert(key, value) {
				return fmt.Errorf("insert %q rejected", key)
			}
			if err := st.Flush(); err != nil {
				return err
			}
			logger.FromContext(ctx).Info("cached value", "partition", name, "key", key, "bytes", len(value))
			return nil
		},
	}
}
