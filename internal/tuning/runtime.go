// Package tuning holds the process-level knobs of the engine: the kernel
// cache factory, GPU driver hints and the CPU thread policy.
//
// All state lives in a Runtime that hosts construct and pass to the
// components that need it. Default and the package-level functions exist for
// hosts that want a single process-wide instance.
package tuning

import (
	"runtime"
	"slices"
	"sync"

	"github.com/samcharles93/kernelhal/internal/cpuinfo"
	"github.com/samcharles93/kernelhal/internal/delegator"
	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/logger"
	"github.com/samcharles93/kernelhal/internal/status"
	"github.com/samcharles93/kernelhal/internal/threadpool"
)

// Prober reports the CPU topology.
type Prober interface {
	CPUCount() (int, error)
	BigLittleCoreIDs() (big, little []int, err error)
}

// ThreadPolicy is the active compute thread configuration.
type ThreadPolicy struct {
	NumThreads int
	Policy     CPUAffinityPolicy
	// CPUIDs is empty when threads are not pinned.
	CPUIDs []int
}

// GPUHints are the advisory hints last set through SetGPUHints.
type GPUHints struct {
	Perf     GPUPerfHint
	Priority GPUPriorityHint
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithProber replaces the sysfs topology prober.
func WithProber(p Prober) Option {
	return func(r *Runtime) {
		r.prober = p
	}
}

// WithLogger sets the runtime logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Runtime) {
		r.log = l
	}
}

// WithPinFunc replaces the thread affinity call used by worker pools.
func WithPinFunc(fn threadpool.PinFunc) Option {
	return func(r *Runtime) {
		r.pin = fn
	}
}

// WithKVStorageFactory installs the cache factory at construction.
func WithKVStorageFactory(f kvstorage.Factory) Option {
	return func(r *Runtime) {
		r.factory = f
	}
}

// Runtime owns the tuning state and the compute worker pool. Setters are
// meant to be called from one controlling goroutine before compute starts;
// the mutex only keeps introspection from observing torn state.
type Runtime struct {
	prober Prober
	log    logger.Logger
	pin    threadpool.PinFunc

	// lazyMu serialises the first Workers call.
	lazyMu sync.Mutex

	mu      sync.Mutex
	factory kvstorage.Factory
	hints   GPUHints
	policy  ThreadPolicy
	pool    *threadpool.Pool
}

// New returns a Runtime with no cache factory, default GPU hints and an
// unpinned pool sized to every core (created on first use).
func New(opts ...Option) *Runtime {
	r := &Runtime{
		prober: cpuinfo.Default(),
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.Component(r.log, "tuning")
	return r
}

// SetKVStorageFactory replaces the cache factory. Delegates capture the
// factory when they are built, so install it before constructing them.
func (r *Runtime) SetKVStorageFactory(f kvstorage.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factory = f
}

// KVStorageFactory returns the installed factory, or nil.
func (r *Runtime) KVStorageFactory() kvstorage.Factory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.factory
}

// SetGPUHints records advisory GPU hints. Only some drivers honor them.
func (r *Runtime) SetGPUHints(perf GPUPerfHint, priority GPUPriorityHint) {
	r.mu.Lock()
	r.hints = GPUHints{Perf: perf, Priority: priority}
	r.mu.Unlock()
	r.log.Info("gpu hints set", "perf", perf, "priority", priority)
}

// GPUHints returns the last hints set.
func (r *Runtime) GPUHints() GPUHints {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hints
}

// GetBigLittleCoreIDs partitions the cores by max frequency. When every core
// runs at the same max frequency both lists hold every core id.
func (r *Runtime) GetBigLittleCoreIDs() (big, little []int, err error) {
	big, little, err = r.prober.BigLittleCoreIDs()
	if err != nil {
		return nil, nil, status.Wrap(status.RuntimeError, "tuning.GetBigLittleCoreIDs", err)
	}
	return big, little, nil
}

// SetOpenMPThreadPolicy sizes the worker pool from policy: every core for
// AffinityNone, the big or little cluster otherwise. A positive
// numThreadsHint caps the count. Big and little policies also pin every
// worker to the cluster.
//
// When the cluster cannot be detected the call fails and the previous
// policy stays in effect; AffinityNone is the usual fallback.
func (r *Runtime) SetOpenMPThreadPolicy(numThreadsHint int, policy CPUAffinityPolicy) error {
	const op = "tuning.SetOpenMPThreadPolicy"

	var next ThreadPolicy
	switch policy {
	case AffinityNone:
		n, err := r.prober.CPUCount()
		if err != nil {
			n = runtime.NumCPU()
			r.log.Warn("cpu count unavailable, using runtime.NumCPU", "error", err, "cpus", n)
		}
		next = ThreadPolicy{NumThreads: n, Policy: policy}
	case AffinityBigOnly, AffinityLittleOnly:
		big, little, err := r.prober.BigLittleCoreIDs()
		if err != nil {
			r.log.Warn("big.LITTLE detection failed", "policy", policy, "error", err)
			return status.Wrap(status.RuntimeError, op, err)
		}
		ids := big
		if policy == AffinityLittleOnly {
			ids = little
		}
		if len(ids) == 0 {
			return status.New(status.RuntimeError, op, "no %s cores detected", policy)
		}
		next = ThreadPolicy{NumThreads: len(ids), Policy: policy, CPUIDs: slices.Clone(ids)}
	default:
		return status.New(status.InvalidArgs, op, "unknown policy %d", int(policy))
	}

	if numThreadsHint > 0 && numThreadsHint < next.NumThreads {
		next.NumThreads = numThreadsHint
	}
	r.install(next)
	return nil
}

// SetOpenMPThreadAffinity pins numThreads workers to cpuIDs without any
// frequency detection. numThreads < 1 means len(cpuIDs). Pinning to an
// offline core is not detected; failures are logged and the affected
// workers run unpinned.
func (r *Runtime) SetOpenMPThreadAffinity(numThreads int, cpuIDs []int) {
	if numThreads < 1 {
		numThreads = len(cpuIDs)
	}
	if numThreads < 1 {
		numThreads = runtime.NumCPU()
	}
	r.install(ThreadPolicy{NumThreads: numThreads, Policy: AffinityNone, CPUIDs: slices.Clone(cpuIDs)})
}

func (r *Runtime) install(next ThreadPolicy) {
	var opts []threadpool.Option
	if r.pin != nil {
		opts = append(opts, threadpool.WithPinFunc(r.pin))
	}
	pool := threadpool.New(next.NumThreads, next.CPUIDs, opts...)
	if err := pool.PinErr(); err != nil {
		r.log.Warn("thread affinity not applied", "cpu_ids", next.CPUIDs, "error", err)
	}

	r.mu.Lock()
	old := r.pool
	r.pool = pool
	r.policy = next
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	r.log.Info("thread policy set", "threads", next.NumThreads, "policy", next.Policy, "cpu_ids", next.CPUIDs)
}

// ThreadPolicy returns the active thread configuration. Before any policy
// is set it reports zero threads.
func (r *Runtime) ThreadPolicy() ThreadPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.policy
	p.CPUIDs = slices.Clone(p.CPUIDs)
	return p
}

// Workers returns the compute pool, creating an unpinned pool with one
// worker per core if no policy was set.
func (r *Runtime) Workers() *threadpool.Pool {
	if pool := r.currentPool(); pool != nil {
		return pool
	}
	r.lazyMu.Lock()
	defer r.lazyMu.Unlock()
	if pool := r.currentPool(); pool != nil {
		return pool
	}
	if err := r.SetOpenMPThreadPolicy(0, AffinityNone); err != nil {
		// AffinityNone falls back to runtime.NumCPU and cannot fail.
		panic(err)
	}
	return r.currentPool()
}

func (r *Runtime) currentPool() *threadpool.Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pool
}

// OpContext returns the context delegators receive in Compute.
func (r *Runtime) OpContext() *delegator.Context {
	workers := r.Workers()
	return &delegator.Context{
		Logger:  r.log,
		Workers: workers,
		Storage: r.KVStorageFactory(),
	}
}

// Close stops the worker pool.
func (r *Runtime) Close() error {
	r.mu.Lock()
	pool := r.pool
	r.pool = nil
	r.policy = ThreadPolicy{}
	r.mu.Unlock()
	if pool != nil {
		pool.Close()
	}
	return nil
}
