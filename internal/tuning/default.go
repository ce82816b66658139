package tuning

import (
	"sync/atomic"

	"github.com/samcharles93/kernelhal/internal/kvstorage"
)

var defaultRuntime atomic.Pointer[Runtime]

// Default returns the process-wide Runtime, creating it on first use.
func Default() *Runtime {
	if r := defaultRuntime.Load(); r != nil {
		return r
	}
	defaultRuntime.CompareAndSwap(nil, New())
	return defaultRuntime.Load()
}

// SetDefault replaces the process-wide Runtime and returns the previous one.
func SetDefault(r *Runtime) *Runtime {
	return defaultRuntime.Swap(r)
}

// SetKVStorageFactory installs f on the default runtime.
func SetKVStorageFactory(f kvstorage.Factory) {
	Default().SetKVStorageFactory(f)
}

// SetGPUHints sets the GPU hints of the default runtime.
func SetGPUHints(perf GPUPerfHint, priority GPUPriorityHint) {
	Default().SetGPUHints(perf, priority)
}

// SetOpenMPThreadPolicy sets the thread policy of the default runtime.
func SetOpenMPThreadPolicy(numThreadsHint int, policy CPUAffinityPolicy) error {
	return Default().SetOpenMPThreadPolicy(numThreadsHint, policy)
}

// SetOpenMPThreadAffinity pins the default runtime's workers to cpuIDs.
func SetOpenMPThreadAffinity(numThreads int, cpuIDs []int) {
	Default().SetOpenMPThreadAffinity(numThreads, cpuIDs)
}

// GetBigLittleCoreIDs probes the host through the default runtime.
func GetBigLittleCoreIDs() (big, little []int, err error) {
	return Default().GetBigLittleCoreIDs()
}
