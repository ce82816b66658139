package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/kernelhal/internal/config"
	"github.com/samcharles93/kernelhal/internal/logger"
	"github.com/samcharles93/kernelhal/internal/tuning"
)

// settings is the config file merged with explicitly set flags.
var settings config.Config

func defaultConfigPath() string {
	return config.DefaultPath()
}

func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return ctx, err
	}
	cfg, err = mergeFlags(cfg, cmd.IsSet)
	if err != nil {
		return ctx, err
	}
	if err := cfg.Validate(); err != nil {
		return ctx, err
	}
	settings = cfg

	log, err := logger.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel, debug)
	if err != nil {
		return ctx, err
	}
	return logger.WithContext(ctx, log), nil
}

// mergeFlags applies flag values over cfg when the flag was explicitly set
// or the file left the field empty.
func mergeFlags(cfg config.Config, isSet func(name string) bool) (config.Config, error) {
	if isSet("cache-dir") || cfg.CacheDir == "" {
		cfg.CacheDir = cacheDir
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = config.DefaultCacheDir()
	}
	if isSet("threads") {
		n := int(threads)
		cfg.Threads = &n
	}
	if isSet("affinity") || cfg.Affinity == "" {
		cfg.Affinity = affinity
	}
	if isSet("cpu-ids") {
		ids, err := parseInts(cpuIDs)
		if err != nil {
			return cfg, fmt.Errorf("--cpu-ids: %w", err)
		}
		cfg.CPUIDs = ids
	}
	if isSet("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if isSet("log-format") || cfg.LogFormat == "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

// newRuntime builds the tuning runtime described by settings.
func newRuntime(ctx context.Context) (*tuning.Runtime, error) {
	log := logger.FromContext(ctx)
	rt := tuning.New(tuning.WithLogger(log))
	if err := settings.Apply(rt, log); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, field := range splitList(s) {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", field)
		}
		out = append(out, v)
	}
	return out, nil
}

func parseFloats(s string) ([]float32, error) {
	var out []float32
	for _, field := range splitList(s) {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", field)
		}
		out = append(out, float32(v))
	}
	return out, nil
}

func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return fields
}
