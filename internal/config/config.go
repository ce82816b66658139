// Package config reads the kernelhal configuration file
// (~/.config/kernelhal/config.yaml) and applies it to a tuning.Runtime.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/logger"
	"github.com/samcharles93/kernelhal/internal/tuning"
)

// Config mirrors the YAML file. Pointer fields distinguish "not set" from
// zero values.
type Config struct {
	// Kernel cache
	CacheDir string `yaml:"cache_dir"`

	// CPU threads
	Threads  *int   `yaml:"threads"`
	Affinity string `yaml:"affinity"`
	CPUIDs   []int  `yaml:"cpu_ids"`

	// GPU hints
	GPUPerf     string `yaml:"gpu_perf"`
	GPUPriority string `yaml:"gpu_priority"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

// DefaultPath returns the per-user config file location, or "" when the
// user config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "kernelhal", "config.yaml")
}

// DefaultCacheDir returns the per-user kernel cache directory.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kernelhal")
	}
	return filepath.Join(dir, "kernelhal")
}

// Load reads path. A missing file yields a zero Config; a malformed one is
// an error.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the enum fields without touching any runtime.
func (c Config) Validate() error {
	if _, err := tuning.ParseCPUAffinityPolicy(c.Affinity); err != nil {
		return err
	}
	if _, err := tuning.ParseGPUPerfHint(c.GPUPerf); err != nil {
		return err
	}
	if _, err := tuning.ParseGPUPriorityHint(c.GPUPriority); err != nil {
		return err
	}
	if c.Threads != nil && *c.Threads < 0 {
		return fmt.Errorf("threads must be >= 0, got %d", *c.Threads)
	}
	for _, id := range c.CPUIDs {
		if id < 0 {
			return fmt.Errorf("cpu_ids: negative id %d", id)
		}
	}
	return nil
}

// Apply installs the configured cache factory, GPU hints and thread policy
// on rt. Explicit cpu_ids take precedence over the affinity policy. A thread
// policy that cannot be detected falls back to AffinityNone with a warning.
func (c Config) Apply(rt *tuning.Runtime, log logger.Logger) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if log == nil {
		log = logger.Nop()
	}

	if c.CacheDir != "" {
		rt.SetKVStorageFactory(kvstorage.NewFileStorageFactory(c.CacheDir, kvstorage.WithLogger(log)))
	}

	perf, _ := tuning.ParseGPUPerfHint(c.GPUPerf)
	prio, _ := tuning.ParseGPUPriorityHint(c.GPUPriority)
	if perf != tuning.GPUPerfDefault || prio != tuning.GPUPriorityDefault {
		rt.SetGPUHints(perf, prio)
	}

	threads := 0
	if c.Threads != nil {
		threads = *c.Threads
	}
	if len(c.CPUIDs) > 0 {
		rt.SetOpenMPThreadAffinity(threads, c.CPUIDs)
		return nil
	}
	policy, _ := tuning.ParseCPUAffinityPolicy(c.Affinity)
	if policy == tuning.AffinityNone && c.Threads == nil {
		return nil
	}
	if err := rt.SetOpenMPThreadPolicy(threads, policy); err != nil {
		log.Warn("thread policy unavailable, using all cores", "policy", policy, "error", err)
		return rt.SetOpenMPThreadPolicy(threads, tuning.AffinityNone)
	}
	return nil
}
