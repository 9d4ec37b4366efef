//go:build linux

package memstats

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/procfs"
)

// sampleRSS reports the current process's resident set size in bytes, via
// procfs's already-byte-converted VmRSS field.
func sampleRSS() (uint64, bool) {
	proc, err := procfs.NewProc(os.Getpid())
	if err != nil {
		return 0, false
	}
	status, err := proc.NewStatus()
	if err != nil {
		return 0, false
	}
	return status.VmRSS, true
}

// PerThreadPeakRSS reads VmHWM for a single thread out of
// /proc/self/task/<tid>/status. It is called by the compile task itself,
// on the locked OS thread that did the compiling, right after the compile
// finishes (SPEC_FULL.md §4.4) -- sampling from any other thread would read
// the wrong task's high-water mark.
//
// procfs has no per-task status reader, so this parses the kernel's
// "Key:\tvalue kB" status format directly, the same line format
// NewStatus() itself consumes.
func PerThreadPeakRSS(tid int) (int64, bool) {
	f, err := os.Open(fmt.Sprintf("/proc/self/task/%d/status", tid))
	if err != nil {
		return 0, false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmHWM:") {
			continue
		}
		fields := strings.Fields(line)
		// "VmHWM:", "<kB value>", "kB"
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return kb * 1024, true
	}
	return 0, false
}
