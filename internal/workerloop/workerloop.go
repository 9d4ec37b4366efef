// Package workerloop implements the per-connection event loop described in
// SPEC_FULL.md §4.7: one already-connected stream, an optional one-time
// version handshake, and then an unbounded recv-supervise-reply cycle until
// the host closes its end.
package workerloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pvfkit/prepare-worker/internal/logging"
	"github.com/pvfkit/prepare-worker/internal/metrics"
	"github.com/pvfkit/prepare-worker/internal/protocol"
	"github.com/pvfkit/prepare-worker/internal/supervisor"
	"github.com/pvfkit/prepare-worker/internal/wkerrors"
)

// Summary holds the shutdown-time request counters logged when Serve
// returns cleanly (SPEC_FULL.md §12 supplemented feature, generalizing the
// teacher's Server.Shutdown shutdown_summary line to a per-worker-lifetime
// count).
type Summary struct {
	Accepted int
	Handled  int
	Errored  int
}

// Serve drives rw until the host closes its end (a clean io.EOF on a frame
// boundary) or a fatal I/O error occurs. If expectedVersion is non-empty, a
// version handshake (write the raw version bytes, read the same number of
// raw bytes back, compare; no length-prefixed frames) runs once before the
// first request, mirroring internal/cnl.Handshake's
// two-goroutine write+read exchange.
func Serve(ctx context.Context, rw io.ReadWriter, expectedVersion string, sup *supervisor.Supervisor, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = logging.L()
	}
	var summary Summary

	if expectedVersion != "" {
		if err := versionHandshake(rw, expectedVersion); err != nil {
			return summary, fmt.Errorf("workerloop: handshake: %w", err)
		}
	}

	pid := os.Getpid()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown", "reason", "context_cancelled", "accepted", summary.Accepted, "handled", summary.Handled, "errored", summary.Errored)
			return summary, ctx.Err()
		default:
		}

		req, err := protocol.RecvRequest(rw)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("shutdown", "reason", "host_closed", "accepted", summary.Accepted, "handled", summary.Handled, "errored", summary.Errored)
				return summary, nil
			}
			summary.Errored++
			return summary, fmt.Errorf("workerloop: recv request: %w", err)
		}
		summary.Accepted++
		logger.Debug("request_received", "worker_pid", pid, "destination", req.Destination)

		outcome := sup.Handle(req.Prepare, req.Destination)
		summary.Handled++
		if outcome.IsOk() {
			metrics.RecordOK(outcome.Stats.CPUTime.Seconds(), outcome.Stats.Memory.MaxRSS)
			logger.Info("request_resolved", "outcome", "ok", "cpu_time_ms", outcome.Stats.CPUTime.Milliseconds())
		} else {
			metrics.RecordErr(wkerrors.MetricLabel(outcome.Err.Kind))
			logger.Info("request_resolved", "outcome", outcome.Err.Kind.String(), "detail", outcome.Err.Detail)
		}

		if err := protocol.SendResponse(rw, outcome); err != nil {
			summary.Errored++
			return summary, fmt.Errorf("workerloop: send response: %w", err)
		}
	}
}

// versionHandshake writes this worker's version and reads the host's
// declared version back, failing if they differ. It does not use a
// deadline-bearing net.Conn directly (rw is an io.ReadWriter, not
// necessarily a net.Conn), so instead of internal/cnl.Handshake's
// SetDeadline it relies on the caller providing a rw that already enforces
// its own timeouts.
func versionHandshake(rw io.ReadWriter, expectedVersion string) error {
	errCh := make(chan error, 2)
	go func() {
		_, err := io.WriteString(rw, expectedVersion)
		errCh <- err
	}()
	go func() {
		buf := make([]byte, len(expectedVersion))
		_, err := io.ReadFull(rw, buf)
		if err == nil && string(buf) != expectedVersion {
			err = fmt.Errorf("version mismatch: got %q, want %q", buf, expectedVersion)
		}
		errCh <- err
	}()
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}
