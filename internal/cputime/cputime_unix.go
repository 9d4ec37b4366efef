//go:build unix

package cputime

import (
	"time"

	"golang.org/x/sys/unix"
)

// processCPUTime reads RUSAGE_SELF via golang.org/x/sys/unix, the same
// direct-syscall idiom the teacher uses in internal/socketcan/device.go
// and ehrlich-b-go-ublk/internal/queue/runner.go for other syscalls.
// user+system time is what spec.md §4.3 calls "process-CPU", as opposed
// to wall-clock.
func processCPUTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, err
	}
	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	sys := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond
	return user + sys, nil
}
