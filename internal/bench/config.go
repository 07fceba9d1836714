package bench

import (
	"fmt"
	"runtime"
)

// SessionConfig is the immutable configuration of one inference context.
type SessionConfig struct {
	ContextSize  int
	BatchSize    int
	Threads      int
	ThreadsBatch int
	Embeddings   bool
	NoPerf       bool
}

// NewSessionConfig sizes the context and batch to exactly n tokens. Profiling
// pins both thread counts to one and enables perf counters. threads <= 0
// means one per CPU.
func NewSessionConfig(n, threads int, profiling bool) SessionConfig {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if profiling {
		threads = 1
	}
	return SessionConfig{
		ContextSize:  n,
		BatchSize:    n,
		Threads:      threads,
		ThreadsBatch: threads,
		Embeddings:   false,
		NoPerf:       !profiling,
	}
}

// validateFor checks the config can hold window w in a single pass.
func (c SessionConfig) validateFor(w Window) error {
	n := len(w)
	if n == 0 {
		return fmt.Errorf("%w: empty window", ErrSessionConfig)
	}
	if c.ContextSize != n || c.BatchSize != n {
		return fmt.Errorf("%w: context=%d batch=%d, window has %d tokens", ErrSessionConfig, c.ContextSize, c.BatchSize, n)
	}
	return nil
}
