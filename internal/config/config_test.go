package config

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"
	"testing/fstest"

	"github.com/samcharles93/kernelhal/internal/cpuinfo"
	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/tuning"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sysfs(freqs ...string) cpuinfo.Prober {
	m := fstest.MapFS{}
	for id, f := range freqs {
		dir := "devices/system/cpu/cpu" + strconv.Itoa(id)
		if f != "" {
			m[dir+"/cpufreq/cpuinfo_max_freq"] = &fstest.MapFile{Data: []byte(f + "\n")}
		} else {
			m[dir+"/online"] = &fstest.MapFile{Data: []byte("1\n")}
		}
	}
	return cpuinfo.Prober{FS: m}
}

func newRuntime(t *testing.T, p cpuinfo.Prober) *tuning.Runtime {
	t.Helper()
	rt := tuning.New(tuning.WithProber(p), tuning.WithPinFunc(func([]int) error { return nil }))
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CacheDir != "" || cfg.Threads != nil {
		t.Fatalf("expected zero config, got %+v", cfg)
	}
}

func TestLoadMalformed(t *testing.T) {
	t.Parallel()
	if _, err := Load(writeConfig(t, "threads: [oops\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadAndApply(t *testing.T) {
	t.Parallel()
	cacheDir := filepath.Join(t.TempDir(), "cache")
	path := writeConfig(t, `
cache_dir: `+cacheDir+`
threads: 1
affinity: big_only
gpu_perf: high
gpu_priority: low
log_level: debug
server_address: 127.0.0.1:9090
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Threads == nil || *cfg.Threads != 1 || cfg.ServerAddress != "127.0.0.1:9090" {
		t.Fatalf("parsed: %+v", cfg)
	}

	rt := newRuntime(t, sysfs("1000", "1000", "2000", "2000"))
	if err := cfg.Apply(rt, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p := rt.ThreadPolicy()
	if p.NumThreads != 1 || p.Policy != tuning.AffinityBigOnly || !slices.Equal(p.CPUIDs, []int{2, 3}) {
		t.Fatalf("policy: %+v", p)
	}
	if h := rt.GPUHints(); h.Perf != tuning.GPUPerfHigh || h.Priority != tuning.GPUPriorityLow {
		t.Fatalf("hints: %+v", h)
	}
	f, ok := rt.KVStorageFactory().(*kvstorage.FileStorageFactory)
	if !ok || f.Root() != cacheDir {
		t.Fatalf("factory: %#v", rt.KVStorageFactory())
	}
}

func TestApplyFallsBackToNone(t *testing.T) {
	t.Parallel()
	threads := 0
	cfg := Config{Affinity: "little_only", Threads: &threads}
	rt := newRuntime(t, sysfs("1000", ""))
	if err := cfg.Apply(rt, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	p := rt.ThreadPolicy()
	if p.Policy != tuning.AffinityNone || p.NumThreads != 2 {
		t.Fatalf("policy: %+v", p)
	}
}

func TestApplyExplicitCPUIDs(t *testing.T) {
	t.Parallel()
	cfg := Config{Affinity: "big_only", CPUIDs: []int{0, 1}}
	rt := newRuntime(t, sysfs("1000", "2000"))
	if err := cfg.Apply(rt, nil); err != nil {
		t.Fatal(err)
	}
	if p := rt.ThreadPolicy(); p.NumThreads != 2 || !slices.Equal(p.CPUIDs, []int{0, 1}) {
		t.Fatalf("policy: %+v", p)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	neg := -1
	tests := []struct {
		name string
		cfg  Config
	}{
		{"affinity", Config{Affinity: "medium"}},
		{"perf", Config{GPUPerf: "turbo"}},
		{"priority", Config{GPUPriority: "urgent"}},
		{"threads", Config{Threads: &neg}},
		{"cpu ids", Config{CPUIDs: []int{0, -2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("zero config: %v", err)
	}
}
