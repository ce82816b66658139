// Package threadpool runs compute chunks on a fixed set of worker threads,
// optionally pinned to specific CPU cores.
//
// Each worker locks its goroutine to an OS thread for its whole lifetime so
// that the affinity mask set at startup keeps applying to the work it runs.
package threadpool

import (
	"errors"
	"runtime"
	"slices"
	"sync"
)

// PinFunc restricts the calling OS thread to cpuIDs.
type PinFunc func(cpuIDs []int) error

type task struct {
	fn     func(start, end int)
	rs, re int
	done   chan struct{}
}

// Pool is a fixed-size worker pool.
type Pool struct {
	size   int
	cpuIDs []int

	tasks     chan task
	doneSlots chan chan struct{}
	workers   sync.WaitGroup
	closeOnce sync.Once

	pinMu   sync.Mutex
	pinErrs []error
}

// Option configures a Pool.
type Option func(*options)

type options struct {
	pin PinFunc
}

// WithPinFunc replaces the platform affinity call.
func WithPinFunc(fn PinFunc) Option {
	return func(o *options) {
		o.pin = fn
	}
}

// New starts numThreads workers. When cpuIDs is non-empty every worker is
// restricted to that set of cores. numThreads < 1 means GOMAXPROCS.
//
// Pinning failures do not stop the pool; they are reported by PinErr and the
// affected workers run unpinned.
func New(numThreads int, cpuIDs []int, opts ...Option) *Pool {
	o := options{pin: pinCurrentThread}
	for _, opt := range opts {
		opt(&o)
	}
	if numThreads < 1 {
		numThreads = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		size:      numThreads,
		cpuIDs:    slices.Clone(cpuIDs),
		tasks:     make(chan task, numThreads*2),
		doneSlots: make(chan chan struct{}, numThreads),
	}
	for i := 0; i < numThreads; i++ {
		p.doneSlots <- make(chan struct{}, numThreads)
	}

	started := make(chan struct{}, numThreads)
	p.workers.Add(numThreads)
	for i := 0; i < numThreads; i++ {
		go p.worker(o.pin, started)
	}
	for i := 0; i < numThreads; i++ {
		<-started
	}
	return p
}

func (p *Pool) worker(pin PinFunc, started chan<- struct{}) {
	defer p.workers.Done()
	// Never unlocked: when the worker exits the runtime discards the thread
	// instead of handing a pinned thread to other goroutines.
	runtime.LockOSThread()
	if len(p.cpuIDs) > 0 && pin != nil {
		if err := pin(p.cpuIDs); err != nil {
			p.pinMu.Lock()
			p.pinErrs = append(p.pinErrs, err)
			p.pinMu.Unlock()
		}
	}
	started <- struct{}{}

	for t := range p.tasks {
		t.fn(t.rs, t.re)
		t.done <- struct{}{}
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// CPUIDs returns the cores workers are pinned to, or nil when unpinned.
func (p *Pool) CPUIDs() []int {
	return slices.Clone(p.cpuIDs)
}

// PinErr reports the pinning failures of all workers, if any.
func (p *Pool) PinErr() error {
	p.pinMu.Lock()
	defer p.pinMu.Unlock()
	return errors.Join(p.pinErrs...)
}

// ParallelFor splits [0, n) into at most Size contiguous chunks and runs fn
// on the workers, returning when all chunks are done. It may be called from
// several goroutines at once.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := min(p.size, n)
	chunk := (n + workers - 1) / workers
	done := <-p.doneSlots

	active := 0
	for i := 0; i < workers; i++ {
		rs := i * chunk
		re := min(rs+chunk, n)
		if rs >= re {
			break
		}
		active++
		p.tasks <- task{fn: fn, rs: rs, re: re, done: done}
	}
	for i := 0; i < active; i++ {
		<-done
	}
	p.doneSlots <- done
}

// Close stops the workers after queued chunks finish. ParallelFor must not
// be called after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.workers.Wait()
	})
}

// CurrentAffinity returns the cores the calling thread may run on.
func CurrentAffinity() ([]int, error) {
	return currentAffinity()
}
