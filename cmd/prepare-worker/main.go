// Command prepare-worker is the single-purpose child process described in
// SPEC_FULL.md §1: it dials the socket path given as its sole positional
// argument, optionally exchanges a version string with the host, then
// serves prepare requests one at a time until the host closes the
// connection.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/pvfkit/prepare-worker/internal/config"
	"github.com/pvfkit/prepare-worker/internal/logging"
	"github.com/pvfkit/prepare-worker/internal/metrics"
	"github.com/pvfkit/prepare-worker/internal/supervisor"
	"github.com/pvfkit/prepare-worker/internal/workerloop"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	l := logging.New(cfg.LogFormat, cfg.SlogLevel(), os.Stderr).With("app", "prepare-worker", "worker_pid", os.Getpid())
	logging.Set(l)

	conn, err := net.Dial("unix", cfg.SocketPath)
	if err != nil {
		l.Error("socket_dial_error", "error", err, "path", cfg.SocketPath)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
		_ = conn.Close()
	}()

	var ready atomic.Bool
	metrics.SetReadinessFunc(ready.Load)
	if cfg.MetricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.MetricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sup := supervisor.New(passthroughBackend{}, passthroughBackend{}, l, cfg.CPUPollInterval, cfg.MemPollInterval)
	ready.Store(true)

	summary, err := workerloop.Serve(ctx, conn, cfg.ExpectedVersion, sup, l)
	if err != nil && ctx.Err() == nil {
		l.Error("worker_loop_error", "error", err)
		os.Exit(1)
	}
	l.Info("shutdown", "accepted", summary.Accepted, "handled", summary.Handled, "errored", summary.Errored)
}
