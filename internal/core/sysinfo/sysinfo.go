// Package sysinfo supplies the thread-count and concurrency defaults
// JobConfigResolver and ConcurrencyController fall back to when a caller
// doesn't pin one explicitly, grounded in viewra's gopsutil-based
// adaptive throttling.
package sysinfo

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
)

// DefaultThreadHint returns the encoder thread count to use when a
// JobConfig leaves ThreadHint at 0: the logical CPU count, capped so one
// job can't claim the whole host.
func DefaultThreadHint() int {
	n, err := cpu.CountsWithContext(context.Background(), true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	if n > 16 {
		n = 16
	}
	if n < 1 {
		n = 1
	}
	return n
}

// DefaultConcurrency returns the default cap on simultaneously Running jobs
// ConcurrencyController uses when not overridden by configuration: one job
// per 4 logical CPUs, floor 1.
func DefaultConcurrency() int {
	n, err := cpu.CountsWithContext(context.Background(), true)
	if err != nil || n <= 0 {
		n = runtime.NumCPU()
	}
	cap := n / 4
	if cap < 1 {
		cap = 1
	}
	return cap
}
