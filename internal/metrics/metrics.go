// Package metrics exposes the worker's Prometheus counters: outcomes by
// kind, CPU time spent preparing, and peak RSS observed. Grounded on the
// teacher's internal/metrics package for the promauto/local-mirror/
// Snapshot/StartHTTP/readiness idiom, with the counter set itself replaced
// end to end for this domain.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/pvfkit/prepare-worker/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PrepareOK = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prepare_ok_total",
		Help: "Total successful preparations.",
	})
	PrepareErr = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prepare_err_total",
		Help: "Total failed preparations, by outcome kind.",
	}, []string{"kind"})
	PrepareCPUTimeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "prepare_cpu_time_seconds",
		Help:    "Process-CPU time spent per completed preparation.",
		Buckets: prometheus.DefBuckets,
	})
	PreparePeakRSSBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prepare_peak_rss_bytes",
		Help: "Peak resident set size observed during the most recent preparation.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Outcome kind label constants, matching wkerrors.MetricLabel, pre-
// registered at startup so the first occurrence of a given kind does not
// pay registration latency.
const (
	KindPrevalidation = "prevalidation"
	KindPreparation   = "preparation"
	KindPanic         = "panic"
	KindTimedOut      = "timed_out"
	KindIo            = "io"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready, mirroring the teacher's metrics.StartHTTP.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, cheap to read in-process via Snap without
// scraping Prometheus.
var (
	localOK      uint64
	localErr     uint64
	localPeakRSS uint64
)

// Snapshot is a cheap copy of the local counters.
type Snapshot struct {
	OK      uint64
	Err     uint64
	PeakRSS uint64
}

func Snap() Snapshot {
	return Snapshot{
		OK:      atomic.LoadUint64(&localOK),
		Err:     atomic.LoadUint64(&localErr),
		PeakRSS: atomic.LoadUint64(&localPeakRSS),
	}
}

// RecordOK records a successful preparation's CPU time and, if known, peak
// RSS.
func RecordOK(cpuSeconds float64, peakRSS *int64) {
	PrepareOK.Inc()
	PrepareCPUTimeSeconds.Observe(cpuSeconds)
	atomic.AddUint64(&localOK, 1)
	if peakRSS != nil && *peakRSS >= 0 {
		PreparePeakRSSBytes.Set(float64(*peakRSS))
		atomic.StoreUint64(&localPeakRSS, uint64(*peakRSS))
	}
}

// RecordErr records a failed preparation under its outcome kind label.
func RecordErr(kind string) {
	PrepareErr.WithLabelValues(kind).Inc()
	atomic.AddUint64(&localErr, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers the error kind
// label series (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, kind := range []string{KindPrevalidation, KindPreparation, KindPanic, KindTimedOut, KindIo} {
		PrepareErr.WithLabelValues(kind).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
