// Package kernelcache skips recompiling device programs by keeping their
// compiled binaries in a kvstorage partition.
//
// Get looks a program up by content key; on a miss it compiles, inserts the
// binary and flushes so the next process run finds it.
package kernelcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/samcharles93/kernelhal/internal/delegator"
	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/logger"
	"github.com/samcharles93/kernelhal/internal/tensor"
)

// ErrNoCompiler is returned by Get on a miss when no compiler was given.
var ErrNoCompiler = errors.New("kernelcache: no compiler")

// Program is a device program before compilation.
type Program struct {
	Name    string
	Source  string
	Options string
	Device  tensor.Device
}

// Key identifies the compiled binary of p. Any change to the source, build
// options or target device yields a different key.
func (p Program) Key() string {
	h := sha256.New()
	for _, field := range []string{p.Device.String(), p.Name, p.Options, p.Source} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return p.Name + "-" + hex.EncodeToString(h.Sum(nil))[:32]
}

// Compiler turns a program into a device binary.
type Compiler interface {
	Compile(ctx context.Context, p Program) ([]byte, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, p Program) ([]byte, error)

func (f CompilerFunc) Compile(ctx context.Context, p Program) ([]byte, error) {
	return f(ctx, p)
}

// Stats counts cache outcomes since Open.
type Stats struct {
	Hits         int
	Misses       int
	Compiles     int
	FlushErrors  int
	Disabled     bool
	PartitionLen int
}

// Cache serialises access to one storage partition so that concurrent
// compiles can share it.
type Cache struct {
	factory   kvstorage.Factory
	partition string
	log       logger.Logger

	mu      sync.Mutex
	storage kvstorage.Storage
	stats   Stats
}

// New returns a cache over factory's partition. A nil factory disables
// caching: every Get compiles.
func New(factory kvstorage.Factory, partition string, log logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{
		factory:   factory,
		partition: partition,
		log:       logger.Component(log, "kernelcache").With("partition", partition),
	}
}

// FromContext returns a cache over the storage factory carried by ctx, the
// one installed on the tuning runtime. A nil context or factory disables
// caching.
func FromContext(ctx *delegator.Context, partition string) *Cache {
	if ctx == nil {
		return New(nil, partition, nil)
	}
	return New(ctx.Storage, partition, ctx.Log())
}

// Open creates and loads the partition. It is called lazily by Get and is
// a no-op once it has succeeded.
func (c *Cache) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openLocked()
}

func (c *Cache) openLocked() error {
	if c.factory == nil || c.storage != nil {
		return nil
	}
	s, err := c.factory.CreateStorage(c.partition)
	if err != nil {
		return fmt.Errorf("kernelcache: create partition: %w", err)
	}
	if err := s.Load(); err != nil {
		_ = s.Close()
		return fmt.Errorf("kernelcache: load partition: %w", err)
	}
	c.storage = s
	c.log.Debug("partition loaded")
	return nil
}

// Get returns the compiled binary for p, compiling it on a miss. The
// returned slice is owned by the caller.
func (c *Cache) Get(ctx context.Context, p Program, compiler Compiler) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.openLocked(); err != nil {
		return nil, err
	}
	key := p.Key()
	if c.storage != nil {
		if bin, ok := c.storage.Find(key); ok {
			c.stats.Hits++
			c.log.Debug("cache hit", "program", p.Name)
			return slices.Clone(bin), nil
		}
	}
	c.stats.Misses++
	if compiler == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCompiler, p.Name)
	}

	bin, err := compiler.Compile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("kernelcache: compile %s: %w", p.Name, err)
	}
	c.stats.Compiles++
	c.log.Debug("compiled", "program", p.Name, "bytes", len(bin))

	if c.storage == nil {
		return bin, nil
	}
	c.storage.Insert(key, bin)
	if err := c.storage.Flush(); err != nil {
		// The binary is still usable; only persistence failed.
		c.stats.FlushErrors++
		c.log.Warn("flush failed", "error", err)
	}
	return bin, nil
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Disabled = c.factory == nil
	if l, ok := c.storage.(interface{ Len() int }); ok {
		s.PartitionLen = l.Len()
	}
	return s
}

// Close releases the partition.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.storage == nil {
		return nil
	}
	err := c.storage.Close()
	c.storage = nil
	return err
}
