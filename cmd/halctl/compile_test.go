package main

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/samcharles93/kernelhal/internal/kernelcache"
	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/tensor"
	"github.com/samcharles93/kernelhal/internal/tuning"
)

func TestProgramName(t *testing.T) {
	t.Parallel()
	if got := programName("kernels/gemv_f16.cl", ""); got != "gemv_f16" {
		t.Fatalf("derived name: %q", got)
	}
	if got := programName("kernels/gemv_f16.cl", "gemv"); got != "gemv" {
		t.Fatalf("explicit name: %q", got)
	}
}

func TestExecCompilerThroughCache(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	prog := kernelcache.Program{Name: "gemv", Source: "__kernel void gemv() {}", Device: tensor.GPU}
	factory := kvstorage.NewFileStorageFactory(t.TempDir())

	for run := range 2 {
		cache := kernelcache.New(factory, "opencl", nil)
		bin, err := cache.Get(context.Background(), prog, execCompiler("cat"))
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if string(bin) != prog.Source {
			t.Fatalf("run %d: binary %q", run, bin)
		}
		s := cache.Stats()
		if run == 0 && (s.Compiles != 1 || s.Hits != 0) {
			t.Fatalf("first run stats: %+v", s)
		}
		if run == 1 && (s.Compiles != 0 || s.Hits != 1) {
			t.Fatalf("second run stats: %+v", s)
		}
		_ = cache.Close()
	}
}

func TestExecCompilerFailure(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	_, err := execCompiler("false").Compile(context.Background(), kernelcache.Program{Name: "x"})
	if err == nil {
		t.Fatal("expected compiler failure")
	}
	if _, err := execCompiler("").Compile(context.Background(), kernelcache.Program{}); !errors.Is(err, kernelcache.ErrNoCompiler) {
		t.Fatalf("empty command: %v", err)
	}
}

func TestCompileProgramUsesRuntimeFactory(t *testing.T) {
	t.Parallel()
	rt := tuning.New(tuning.WithPinFunc(func([]int) error { return nil }))
	t.Cleanup(func() { _ = rt.Close() })
	factory := kvstorage.NewMemoryFactory()
	rt.SetKVStorageFactory(factory)

	prog := kernelcache.Program{Name: "gemv", Source: "__kernel void gemv() {}", Device: tensor.GPU}
	compiles := 0
	comp := kernelcache.CompilerFunc(func(_ context.Context, p kernelcache.Program) ([]byte, error) {
		compiles++
		return []byte("bin:" + p.Name), nil
	})

	_, first, err := compileProgram(context.Background(), rt, "opencl", prog, comp)
	if err != nil {
		t.Fatal(err)
	}
	bin, second, err := compileProgram(context.Background(), rt, "opencl", prog, comp)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached || !second.Cached || compiles != 1 || string(bin) != "bin:gemv" {
		t.Fatalf("first=%+v second=%+v compiles=%d bin=%q", first, second, compiles, bin)
	}

	st, err := factory.CreateStorage("opencl")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Load(); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Find(prog.Key()); !ok {
		t.Fatal("binary not stored in the runtime's factory")
	}
}
