//go:build !unix

package cputime

import (
	"sync"
	"time"
)

// processCPUTime falls back to wall-clock time elapsed since its own
// first call on platforms with no Rusage syscall available (spec.md §9: an
// unsupported measurement degrades gracefully, it never fails the
// preparation). This is a deliberately weaker approximation than
// RUSAGE_SELF: it will overstate CPU time on a throttled machine, which
// is safe (it can only make the worker time out more eagerly, never
// less).
var processStart = sync.OnceValue(time.Now)

func processCPUTime() (time.Duration, error) {
	return time.Since(processStart()), nil
}
