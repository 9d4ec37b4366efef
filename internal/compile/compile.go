// Package compile implements the prevalidate-then-compile task described
// in SPEC_FULL.md §4.5: it pins itself to its OS thread so the per-thread
// RSS reading it takes before unpinning targets the right thread, and
// wraps the whole body in a panic boundary so a misbehaving backend can
// never crash the worker process.
package compile

import (
	"runtime"

	"github.com/pvfkit/prepare-worker/internal/memstats"
	"github.com/pvfkit/prepare-worker/internal/protocol"
	"github.com/pvfkit/prepare-worker/internal/wkerrors"
)

// Prevalidator performs the cheap, fast-rejecting checks on a blob before
// the expensive compile step runs (spec.md §1: out of scope to implement
// here, a concrete backend is supplied by the host program).
type Prevalidator interface {
	Prevalidate(blob []byte, executorParams []byte) error
}

// Compiler turns a prevalidated blob into an artifact.
type Compiler interface {
	Compile(blob []byte, executorParams []byte) ([]byte, error)
}

// Result is everything the supervisor needs out of a finished compile
// attempt: the artifact bytes (nil on failure), the classified error (nil
// on success), and the peak RSS of the thread the compile ran on, read
// while that thread was still pinned.
type Result struct {
	Artifact []byte
	Err      *wkerrors.Classified
	RSS      int64
	HasRSS   bool
}

// Run executes prevalidate then compile on the calling goroutine, pinned
// to its OS thread for the duration, recovers from any panic raised by
// either step, and reads the thread's peak RSS before unpinning it -- the
// read happens inside the deferred-unlock window so it always targets the
// thread the compile actually ran on, never whatever thread the goroutine
// is rescheduled onto afterward.
func Run(req protocol.PrepareRequest, prevalidate Prevalidator, compiler Compiler) (result Result) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		result.RSS, result.HasRSS = perThreadRSS()
	}()

	defer func() {
		if r := recover(); r != nil {
			result = Result{Err: wkerrors.New(wkerrors.KindPanic, wkerrors.StringifyPanic(r))}
		}
	}()

	if err := prevalidate.Prevalidate(req.Blob, req.ExecutorParams); err != nil {
		return Result{Err: wkerrors.Newf(wkerrors.KindPrevalidation, "%v", err)}
	}

	artifact, err := compiler.Compile(req.Blob, req.ExecutorParams)
	if err != nil {
		return Result{Err: wkerrors.Newf(wkerrors.KindPreparation, "%v", err)}
	}

	return Result{Artifact: artifact}
}

// perThreadRSS reads the peak RSS of the calling thread. Only Run calls
// this, while still pinned to that thread via runtime.LockOSThread.
func perThreadRSS() (int64, bool) {
	return memstats.PerThreadPeakRSS(gettid())
}
