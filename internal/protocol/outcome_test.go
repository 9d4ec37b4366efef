package protocol

import (
	"bytes"
	"testing"
	"time"

	"github.com/pvfkit/prepare-worker/internal/wkerrors"
)

func TestEncodeDecodeOutcome_Ok(t *testing.T) {
	peak := int64(4096)
	stats := PrepareStats{
		CPUTime: 42*time.Millisecond + 7*time.Microsecond,
		Memory: MemoryStats{
			Tracker: &TrackerSummary{PeakBytes: 1 << 20, AverageBytes: 1 << 18, Samples: 12},
			MaxRSS:  &peak,
		},
	}
	payload := EncodeOutcome(Ok(stats))
	out, err := DecodeOutcome(payload)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !out.IsOk() {
		t.Fatalf("expected Ok outcome")
	}
	if out.Stats.CPUTime != stats.CPUTime {
		t.Fatalf("cpu time = %v, want %v", out.Stats.CPUTime, stats.CPUTime)
	}
	if *out.Stats.Memory.MaxRSS != peak {
		t.Fatalf("max rss mismatch")
	}
	if out.Stats.Memory.Tracker.Samples != 12 {
		t.Fatalf("tracker samples mismatch")
	}
}

func TestEncodeDecodeOutcome_OkWithAbsentMemoryFields(t *testing.T) {
	stats := PrepareStats{CPUTime: time.Second}
	payload := EncodeOutcome(Ok(stats))
	out, err := DecodeOutcome(payload)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if out.Stats.Memory.Tracker != nil || out.Stats.Memory.MaxRSS != nil {
		t.Fatalf("expected absent memory fields to stay absent")
	}
}

func TestEncodeDecodeOutcome_ErrKinds(t *testing.T) {
	kinds := []wkerrors.Kind{
		wkerrors.KindPrevalidation,
		wkerrors.KindPreparation,
		wkerrors.KindPanic,
		wkerrors.KindTimedOut,
		wkerrors.KindIo,
	}
	for _, k := range kinds {
		classified := wkerrors.New(k, "bad header")
		payload := EncodeOutcome(Err(classified))
		out, err := DecodeOutcome(payload)
		if err != nil {
			t.Fatalf("kind %v: decode error: %v", k, err)
		}
		if out.IsOk() {
			t.Fatalf("kind %v: expected error outcome", k)
		}
		if out.Err.Kind != k {
			t.Fatalf("kind %v: got %v", k, out.Err.Kind)
		}
		if k != wkerrors.KindTimedOut && out.Err.Detail != "bad header" {
			t.Fatalf("kind %v: detail = %q", k, out.Err.Detail)
		}
	}
}

func TestEncodeOutcome_TimedOutCarriesNoDetail(t *testing.T) {
	payload := EncodeOutcome(Err(wkerrors.New(wkerrors.KindTimedOut, "ignored")))
	if !bytes.Equal(payload, []byte{tagTimedOut}) {
		t.Fatalf("expected a single-byte TimedOut payload, got % X", payload)
	}
}

func TestDecodeOutcome_UnknownTag(t *testing.T) {
	_, err := DecodeOutcome([]byte{0x7F})
	if err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}

func TestDecodeOutcome_EmptyPayload(t *testing.T) {
	_, err := DecodeOutcome(nil)
	if err == nil {
		t.Fatalf("expected error for empty payload")
	}
}
