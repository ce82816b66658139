package delegator

import (
	"github.com/samcharles93/kernelhal/internal/kvstorage"
	"github.com/samcharles93/kernelhal/internal/logger"
)

// ParallelRunner splits [0, n) into contiguous chunks and runs fn on each,
// returning once every chunk has finished.
type ParallelRunner interface {
	ParallelFor(n int, fn func(start, end int))
}

// Context is forwarded unchanged to every Compute call. Any field may be
// nil; delegators fall back to their own defaults.
type Context struct {
	Logger  logger.Logger
	Workers ParallelRunner
	Storage kvstorage.Factory
}

// Log returns the context logger or a no-op logger.
func (c *Context) Log() logger.Logger {
	if c == nil || c.Logger == nil {
		return logger.Nop()
	}
	return c.Logger
}
