// Package memstats implements the memory sampler described in
// SPEC_FULL.md §4.4: a background goroutine that periodically samples the
// preparation process's resident set size while a compile is in flight, plus
// a one-shot reader a compile task can call on its own goroutine/thread to
// pick up the per-thread peak RSS at the moment it finishes.
package memstats

import (
	"sync"
	"time"
)

// Summary mirrors protocol.TrackerSummary: peak and average RSS observed
// across all samples taken during a single prepare call, plus the sample
// count so a caller can judge how coarse the average is.
type Summary struct {
	PeakBytes    uint64
	AverageBytes uint64
	Samples      uint64
}

// Sampler accumulates RSS samples on a ticker until stopped. A Sampler is
// single-use: construct one per prepare call.
type Sampler struct {
	mu      sync.Mutex
	peak    uint64
	sum     uint64
	samples uint64
}

// NewSampler returns a Sampler ready to Start.
func NewSampler() *Sampler {
	return &Sampler{}
}

// Start runs the sampling loop at pollInterval (operator-configured, see
// internal/config.Config.MemPollInterval) until stop is closed, then
// returns the accumulated Summary. It blocks the calling goroutine, so
// callers run it in its own goroutine alongside the compile task, the
// same way cputime.Monitor is run alongside a CPU budget.
//
// If RSS sampling is unsupported on the current platform, Start still
// respects stop but returns a Summary with zero samples; the caller treats
// that as "no tracker data available" rather than an error.
func (s *Sampler) Start(stop <-chan struct{}, pollInterval time.Duration) *Summary {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return s.summary()
		case <-ticker.C:
			if rss, ok := sampleRSS(); ok {
				s.record(rss)
			}
		}
	}
}

func (s *Sampler) record(rss uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rss > s.peak {
		s.peak = rss
	}
	s.sum += rss
	s.samples++
}

func (s *Sampler) summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samples == 0 {
		return &Summary{}
	}
	return &Summary{
		PeakBytes:    s.peak,
		AverageBytes: s.sum / s.samples,
		Samples:      s.samples,
	}
}
