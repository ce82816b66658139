package kernelcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/samcharles93/kernelhal/internal/delegator"
	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/tensor"
)

type countingCompiler struct {
	calls atomic.Int32
}

func (c *countingCompiler) Compile(_ context.Context, p Program) ([]byte, error) {
	c.calls.Add(1)
	return []byte("bin:" + p.Name), nil
}

var gemvProgram = Program{
	Name:    "gemv_f32",
	Source:  "__kernel void gemv() {}",
	Options: "-DTILE=4",
	Device:  tensor.GPU,
}

func TestGetCompilesOnceAcrossRuns(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	compiler := &countingCompiler{}

	first := New(kvstorage.NewFileStorageFactory(root), "opencl", nil)
	bin, err := first.Get(context.Background(), gemvProgram, compiler)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if string(bin) != "bin:gemv_f32" {
		t.Fatalf("binary: got %q", bin)
	}
	if _, err := first.Get(context.Background(), gemvProgram, compiler); err != nil {
		t.Fatal(err)
	}
	if s := first.Stats(); s.Hits != 1 || s.Misses != 1 || s.Compiles != 1 || s.PartitionLen != 1 {
		t.Fatalf("stats: %+v", s)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := New(kvstorage.NewFileStorageFactory(root), "opencl", nil)
	defer func() { _ = second.Close() }()
	bin, err = second.Get(context.Background(), gemvProgram, nil)
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if string(bin) != "bin:gemv_f32" {
		t.Fatalf("binary after restart: got %q", bin)
	}
	if compiler.calls.Load() != 1 {
		t.Fatalf("compiler calls: got %d want 1", compiler.calls.Load())
	}
}

func TestKeyChangesWithOptions(t *testing.T) {
	t.Parallel()
	other := gemvProgram
	other.Options = "-DTILE=8"
	if gemvProgram.Key() == other.Key() {
		t.Fatal("options must change the key")
	}
	onCPU := gemvProgram
	onCPU.Device = tensor.CPU
	if gemvProgram.Key() == onCPU.Key() {
		t.Fatal("device must change the key")
	}
	if gemvProgram.Key() != gemvProgram.Key() {
		t.Fatal("key is not stable")
	}
}

func TestDisabledCacheAlwaysCompiles(t *testing.T) {
	t.Parallel()
	c := New(nil, "opencl", nil)
	compiler := &countingCompiler{}
	for range 3 {
		if _, err := c.Get(context.Background(), gemvProgram, compiler); err != nil {
			t.Fatal(err)
		}
	}
	if compiler.calls.Load() != 3 {
		t.Fatalf("compiler calls: got %d", compiler.calls.Load())
	}
	if s := c.Stats(); !s.Disabled || s.Hits != 0 {
		t.Fatalf("stats: %+v", s)
	}
}

func TestMissWithoutCompiler(t *testing.T) {
	t.Parallel()
	c := New(kvstorage.NewMemoryFactory(), "opencl", nil)
	if _, err := c.Get(context.Background(), gemvProgram, nil); !errors.Is(err, ErrNoCompiler) {
		t.Fatalf("expected ErrNoCompiler, got %v", err)
	}
}

func TestCompileErrorNotCached(t *testing.T) {
	t.Parallel()
	c := New(kvstorage.NewMemoryFactory(), "opencl", nil)
	errBuild := errors.New("build failed")
	failing := CompilerFunc(func(context.Context, Program) ([]byte, error) { return nil, errBuild })
	if _, err := c.Get(context.Background(), gemvProgram, failing); !errors.Is(err, errBuild) {
		t.Fatalf("expected build error, got %v", err)
	}
	compiler := &countingCompiler{}
	if _, err := c.Get(context.Background(), gemvProgram, compiler); err != nil {
		t.Fatal(err)
	}
	if compiler.calls.Load() != 1 {
		t.Fatal("failed compile must not populate the cache")
	}
}

func TestConcurrentGet(t *testing.T) {
	t.Parallel()
	c := New(kvstorage.NewMemoryFactory(), "opencl", nil)
	compiler := &countingCompiler{}
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), gemvProgram, compiler); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if compiler.calls.Load() != 1 {
		t.Fatalf("compiler calls: got %d want 1", compiler.calls.Load())
	}
}

func TestOpenRejectsBadPartition(t *testing.T) {
	t.Parallel()
	c := New(kvstorage.NewFileStorageFactory(t.TempDir()), "../escape", nil)
	if err := c.Open(); !errors.Is(err, kvstorage.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestStatsCountsPersistedEntries(t *testing.T) {
	t.Parallel()
	factory := kvstorage.NewMemoryFactory()
	seed, err := factory.CreateStorage("opencl")
	if err != nil {
		t.Fatal(err)
	}
	seed.Insert("other-program", []byte("bin"))
	if err := seed.Flush(); err != nil {
		t.Fatal(err)
	}

	c := New(factory, "opencl", nil)
	defer func() { _ = c.Close() }()
	if err := c.Open(); err != nil {
		t.Fatal(err)
	}
	if s := c.Stats(); s.PartitionLen != 1 {
		t.Fatalf("partition len: got %d, want 1", s.PartitionLen)
	}
}

func TestFromContextUsesContextStorage(t *testing.T) {
	t.Parallel()
	factory := kvstorage.NewMemoryFactory()
	c := FromContext(&delegator.Context{Storage: factory}, "opencl")
	defer func() { _ = c.Close() }()
	if _, err := c.Get(context.Background(), gemvProgram, &countingCompiler{}); err != nil {
		t.Fatal(err)
	}

	st, err := factory.CreateStorage("opencl")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Load(); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Find(gemvProgram.Key()); !ok {
		t.Fatal("compiled binary not stored in the context factory")
	}

	if s := FromContext(nil, "opencl").Stats(); !s.Disabled {
		t.Fatalf("nil context should disable caching: %+v", s)
	}
}
