// Package supervisor implements the per-request state machine described
// in SPEC_FULL.md §4.6: spawn the compile task, the CPU monitor and the
// memory sampler, race them under the priority-order rule, and assemble a
// single classified Outcome. Grounded on the teacher's
// Server.acceptOnce (spawn goroutines, track with sync.WaitGroup, collect
// results over channels), generalized from "per connection" to
// "per request".
package supervisor

import (
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pvfkit/prepare-worker/internal/artifact"
	"github.com/pvfkit/prepare-worker/internal/compile"
	"github.com/pvfkit/prepare-worker/internal/cputime"
	"github.com/pvfkit/prepare-worker/internal/logging"
	"github.com/pvfkit/prepare-worker/internal/memstats"
	"github.com/pvfkit/prepare-worker/internal/protocol"
	"github.com/pvfkit/prepare-worker/internal/wkerrors"
)

// raceTick is the poll-and-sleep granularity of the priority-order loop,
// matching original_source/prepare.rs's thread::sleep(Duration::from_millis(10)).
const raceTick = 10 * time.Millisecond

// Supervisor runs one request at a time; it holds no per-request state
// between calls, so a single instance is reused across the lifetime of a
// worker process.
type Supervisor struct {
	Prevalidate     compile.Prevalidator
	Compiler        compile.Compiler
	Logger          *slog.Logger
	CPUPollInterval time.Duration
	MemPollInterval time.Duration
}

// defaultPollInterval is used when a Supervisor is constructed without an
// explicit poll interval (e.g. built directly as a struct literal in a
// test), matching the operator-facing flag defaults in internal/config.
const defaultPollInterval = 100 * time.Millisecond

// New returns a Supervisor wired to the given backend collaborators and
// poll intervals (internal/config.Config.CPUPollInterval/MemPollInterval).
// A nil Logger falls back to the package-wide logger; a zero interval
// falls back to defaultPollInterval.
func New(prevalidate compile.Prevalidator, compiler compile.Compiler, logger *slog.Logger, cpuPollInterval, memPollInterval time.Duration) *Supervisor {
	if logger == nil {
		logger = logging.L()
	}
	if cpuPollInterval <= 0 {
		cpuPollInterval = defaultPollInterval
	}
	if memPollInterval <= 0 {
		memPollInterval = defaultPollInterval
	}
	return &Supervisor{
		Prevalidate:     prevalidate,
		Compiler:        compiler,
		Logger:          logger,
		CPUPollInterval: cpuPollInterval,
		MemPollInterval: memPollInterval,
	}
}

func (s *Supervisor) cpuPollInterval() time.Duration {
	if s.CPUPollInterval > 0 {
		return s.CPUPollInterval
	}
	return defaultPollInterval
}

func (s *Supervisor) memPollInterval() time.Duration {
	if s.MemPollInterval > 0 {
		return s.MemPollInterval
	}
	return defaultPollInterval
}

// Handle runs prevalidate/compile for req under budget req.PrepTimeout,
// writes the artifact to dest on success, and returns the single Outcome
// the host must see. It never panics: any panic surviving the inner
// compile-task boundary is caught by the compile goroutine's own recover,
// and a panic in Handle's bookkeeping by the recover below (the two-belt
// design in SPEC_FULL.md §9/§10.4).
func (s *Supervisor) Handle(req protocol.PrepareRequest, dest string) (outcome protocol.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = protocol.Err(wkerrors.New(wkerrors.KindPanic, wkerrors.StringifyPanic(r)))
		}
	}()

	start, err := cputime.Now()
	if err != nil {
		return protocol.Err(wkerrors.Newf(wkerrors.KindIo, "read starting cpu time: %v", err))
	}

	compileDone := make(chan compile.Result, 1)
	monitorDone := make(chan *time.Duration, 1)
	monitorCancel := make(chan struct{})

	sampler := memstats.NewSampler()
	samplerStop := make(chan struct{})
	samplerDone := make(chan *memstats.Summary, 1)

	// The compile goroutine is deliberately NOT joined by the errgroup
	// below: if the monitor wins the race it is abandoned in the
	// background (SPEC_FULL.md §5), and waiting for it here would defeat
	// that policy by blocking the supervisor on a thread that may never
	// return.
	go func() {
		// Join-time boundary: a panic escaping compile.Run (e.g. from its
		// post-compile RSS read) is classified here, since Handle's own
		// recover cannot see panics raised on this goroutine.
		defer func() {
			if r := recover(); r != nil {
				compileDone <- compile.Result{Err: wkerrors.New(wkerrors.KindPanic, wkerrors.StringifyPanic(r))}
			}
		}()
		compileDone <- compile.Run(req, s.Prevalidate, s.Compiler)
	}()

	var eg errgroup.Group
	eg.Go(func() error {
		samplerDone <- sampler.Start(samplerStop, s.memPollInterval())
		return nil
	})
	eg.Go(func() error {
		monitorDone <- cputime.Monitor(start, req.PrepTimeout, s.cpuPollInterval(), monitorCancel)
		return nil
	})

	var (
		finished   *compile.Result
		timedOutAt *time.Duration
	)
	ticker := time.NewTicker(raceTick)
	defer ticker.Stop()
raceLoop:
	for {
		// Priority order: always look at the compile result before the
		// monitor result, so a compile that finishes in the same tick as
		// the budget expiring is never misreported as TimedOut.
		select {
		case r := <-compileDone:
			finished = &r
			break raceLoop
		default:
		}
		select {
		case d := <-monitorDone:
			timedOutAt = d
			break raceLoop
		default:
		}
		<-ticker.C
	}

	close(samplerStop)

	var elapsed time.Duration
	if finished != nil {
		// Invariant 3: an Ok outcome's CPU time is measured before the
		// monitor is told to stop, matching prepare.rs's ordering
		// (cpu_time_elapsed read, then the watchdog signaled).
		cpuTime, _ := cputime.Now()
		elapsed = cpuTime - start
		// Compile won the race; tell the monitor goroutine to stop so it
		// does not keep polling after its result is moot.
		close(monitorCancel)
	}
	// Compile lost the race: it is left running on its own goroutine and
	// OS thread, unjoined (SPEC_FULL.md §5 abandoned-compile policy).
	_ = eg.Wait()

	memSummary := <-samplerDone

	if finished == nil {
		s.Logger.Warn("prepare_timed_out", "cpu_time_ms", timedOutAt.Milliseconds())
		return protocol.Err(wkerrors.New(wkerrors.KindTimedOut, ""))
	}

	if finished.Err != nil {
		return protocol.Err(finished.Err)
	}

	if err := artifact.Write(dest, finished.Artifact); err != nil {
		return protocol.Err(wkerrors.Newf(wkerrors.KindIo, "%v", err))
	}

	stats := protocol.PrepareStats{CPUTime: elapsed, Memory: assembleMemoryStats(memSummary, finished)}
	return protocol.Ok(stats)
}

func assembleMemoryStats(summary *memstats.Summary, finished *compile.Result) protocol.MemoryStats {
	var stats protocol.MemoryStats
	if summary != nil && summary.Samples > 0 {
		stats.Tracker = &protocol.TrackerSummary{
			PeakBytes:    summary.PeakBytes,
			AverageBytes: summary.AverageBytes,
			Samples:      summary.Samples,
		}
	}
	if finished.HasRSS {
		rss := finished.RSS
		stats.MaxRSS = &rss
	}
	return stats
}
