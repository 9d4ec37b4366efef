//go:build !linux

package memstats

// sampleRSS has no portable implementation outside Linux; the sampler
// simply accumulates zero samples, which Summary reports as absent rather
// than erroring.
func sampleRSS() (uint64, bool) {
	return 0, false
}

// PerThreadPeakRSS has no portable implementation outside Linux.
func PerThreadPeakRSS(tid int) (int64, bool) {
	return 0, false
}
