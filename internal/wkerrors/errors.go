// Package wkerrors defines the closed outcome-kind taxonomy for the
// preparation worker and the sentinel errors used to classify failures
// as they propagate out of the compile task and supervisor.
package wkerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the five outcome kinds the host must recognize.
type Kind uint8

const (
	KindPrevalidation Kind = iota
	KindPreparation
	KindPanic
	KindTimedOut
	KindIo
)

func (k Kind) String() string {
	switch k {
	case KindPrevalidation:
		return "Prevalidation"
	case KindPreparation:
		return "Preparation"
	case KindPanic:
		return "Panic"
	case KindTimedOut:
		return "TimedOut"
	case KindIo:
		return "Io"
	default:
		return "Unknown"
	}
}

// Sentinel errors used for errors.Is classification, matching the
// wrap-and-classify idiom the teacher uses in internal/server/errors.go.
var (
	ErrPrevalidation = errors.New("prevalidation")
	ErrPreparation   = errors.New("preparation")
	ErrPanic         = errors.New("panic")
	ErrTimedOut      = errors.New("timed out")
	ErrIo            = errors.New("io")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindPrevalidation:
		return ErrPrevalidation
	case KindPreparation:
		return ErrPreparation
	case KindPanic:
		return ErrPanic
	case KindTimedOut:
		return ErrTimedOut
	default:
		return ErrIo
	}
}

// Classified is the worker-side error value carried by a failed Outcome.
// Detail is host-facing text only; the host logs it, never parses it.
type Classified struct {
	Kind   Kind
	Detail string
}

func New(k Kind, detail string) *Classified {
	return &Classified{Kind: k, Detail: detail}
}

func Newf(k Kind, format string, args ...any) *Classified {
	return &Classified{Kind: k, Detail: fmt.Sprintf(format, args...)}
}

func (c *Classified) Error() string {
	if c.Detail == "" {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s: %s", c.Kind, c.Detail)
}

func (c *Classified) Unwrap() error {
	return sentinelFor(c.Kind)
}

// MetricLabel maps a Kind to a stable, low-cardinality Prometheus label
// value, mirroring the teacher's mapErrToMetric in internal/server/errors.go.
func MetricLabel(k Kind) string {
	switch k {
	case KindPrevalidation:
		return "prevalidation"
	case KindPreparation:
		return "preparation"
	case KindPanic:
		return "panic"
	case KindTimedOut:
		return "timed_out"
	case KindIo:
		return "io"
	default:
		return "unknown"
	}
}

// StringifyPanic renders a recovered panic value as human-readable text.
// Used by both the inner compile-task boundary and the outer supervisor
// join-time boundary so detail text is identical regardless of which
// belt catches the panic (see SPEC_FULL.md §9, §10.4).
func StringifyPanic(v any) string {
	switch p := v.(type) {
	case nil:
		return "panic: <nil>"
	case error:
		return fmt.Sprintf("panic: %s", p.Error())
	case string:
		return fmt.Sprintf("panic: %s", p)
	case fmt.Stringer:
		return fmt.Sprintf("panic: %s", p.String())
	default:
		return fmt.Sprintf("panic: %v", p)
	}
}
