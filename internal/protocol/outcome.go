package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/pvfkit/prepare-worker/internal/wire"
	"github.com/pvfkit/prepare-worker/internal/wkerrors"
)

// Outcome tags, fixed per SPEC_FULL.md §6 — this numbering is a
// compatibility contract with the host codec.
const (
	tagOk            byte = 0x00
	tagPrevalidation byte = 0x01
	tagPreparation   byte = 0x02
	tagPanic         byte = 0x03
	tagTimedOut      byte = 0x04
	tagIo            byte = 0x05
)

// TrackerSummary is the memory-tracker-loop summary: peak/average RSS
// observed across the sampling window and how many samples contributed.
type TrackerSummary struct {
	PeakBytes    uint64
	AverageBytes uint64
	Samples      uint64
}

// MemoryStats carries whichever of the two independent memory
// measurements the platform supports; either may be absent.
type MemoryStats struct {
	Tracker *TrackerSummary
	MaxRSS  *int64 // per-thread peak RSS, bytes
}

// PrepareStats is the success payload.
type PrepareStats struct {
	CPUTime time.Duration
	Memory  MemoryStats
}

// Outcome is the tagged union returned to the host: exactly one of a
// success (Stats populated) or a failure (Err populated).
type Outcome struct {
	Stats *PrepareStats
	Err   *wkerrors.Classified
}

func Ok(stats PrepareStats) Outcome {
	return Outcome{Stats: &stats}
}

func Err(classified *wkerrors.Classified) Outcome {
	return Outcome{Err: classified}
}

func (o Outcome) IsOk() bool { return o.Stats != nil }

func kindToTag(k wkerrors.Kind) byte {
	switch k {
	case wkerrors.KindPrevalidation:
		return tagPrevalidation
	case wkerrors.KindPreparation:
		return tagPreparation
	case wkerrors.KindPanic:
		return tagPanic
	case wkerrors.KindTimedOut:
		return tagTimedOut
	default:
		return tagIo
	}
}

func tagToKind(tag byte) (wkerrors.Kind, error) {
	switch tag {
	case tagPrevalidation:
		return wkerrors.KindPrevalidation, nil
	case tagPreparation:
		return wkerrors.KindPreparation, nil
	case tagPanic:
		return wkerrors.KindPanic, nil
	case tagTimedOut:
		return wkerrors.KindTimedOut, nil
	case tagIo:
		return wkerrors.KindIo, nil
	default:
		return 0, fmt.Errorf("protocol: unknown outcome tag 0x%02x", tag)
	}
}

// EncodeOutcome serializes o into a single frame payload.
func EncodeOutcome(o Outcome) []byte {
	if o.IsOk() {
		return encodeOkPayload(*o.Stats)
	}
	return encodeErrPayload(o.Err)
}

func encodeOkPayload(stats PrepareStats) []byte {
	buf := make([]byte, 0, 1+12+1+24+1+8)
	buf = append(buf, tagOk)

	var durBuf [12]byte
	secs := int64(stats.CPUTime / time.Second)
	nanos := int32(stats.CPUTime % time.Second)
	binary.LittleEndian.PutUint64(durBuf[0:8], uint64(secs))
	binary.LittleEndian.PutUint32(durBuf[8:12], uint32(nanos))
	buf = append(buf, durBuf[:]...)

	if t := stats.Memory.Tracker; t != nil {
		buf = append(buf, 1)
		var tbuf [24]byte
		binary.LittleEndian.PutUint64(tbuf[0:8], t.PeakBytes)
		binary.LittleEndian.PutUint64(tbuf[8:16], t.AverageBytes)
		binary.LittleEndian.PutUint64(tbuf[16:24], t.Samples)
		buf = append(buf, tbuf[:]...)
	} else {
		buf = append(buf, 0)
	}

	if m := stats.Memory.MaxRSS; m != nil {
		buf = append(buf, 1)
		var mbuf [8]byte
		binary.LittleEndian.PutUint64(mbuf[:], uint64(*m))
		buf = append(buf, mbuf[:]...)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func encodeErrPayload(c *wkerrors.Classified) []byte {
	tag := kindToTag(c.Kind)
	if tag == tagTimedOut {
		return []byte{tag} // TimedOut carries no detail on the wire
	}
	detail := []byte(c.Detail)
	buf := make([]byte, 0, 1+4+len(detail))
	buf = append(buf, tag)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(detail)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, detail...)
	return buf
}

// DecodeOutcome is the inverse of EncodeOutcome.
func DecodeOutcome(payload []byte) (Outcome, error) {
	if len(payload) == 0 {
		return Outcome{}, fmt.Errorf("protocol: empty outcome payload")
	}
	tag := payload[0]
	rest := payload[1:]

	if tag == tagOk {
		return decodeOkPayload(rest)
	}

	kind, err := tagToKind(tag)
	if err != nil {
		return Outcome{}, err
	}
	if tag == tagTimedOut {
		return Err(wkerrors.New(kind, "")), nil
	}
	detail, _, err := readLenPrefixed(rest)
	if err != nil {
		return Outcome{}, fmt.Errorf("protocol: decode error detail: %w", err)
	}
	return Err(wkerrors.New(kind, string(detail))), nil
}

func decodeOkPayload(b []byte) (Outcome, error) {
	if len(b) < 12 {
		return Outcome{}, fmt.Errorf("protocol: truncated cpu_time in ok payload")
	}
	secs := int64(binary.LittleEndian.Uint64(b[0:8]))
	nanos := int32(binary.LittleEndian.Uint32(b[8:12]))
	cpu := time.Duration(secs)*time.Second + time.Duration(nanos)
	b = b[12:]

	var mem MemoryStats
	if len(b) < 1 {
		return Outcome{}, fmt.Errorf("protocol: truncated tracker presence flag")
	}
	hasTracker := b[0] == 1
	b = b[1:]
	if hasTracker {
		if len(b) < 24 {
			return Outcome{}, fmt.Errorf("protocol: truncated tracker summary")
		}
		mem.Tracker = &TrackerSummary{
			PeakBytes:    binary.LittleEndian.Uint64(b[0:8]),
			AverageBytes: binary.LittleEndian.Uint64(b[8:16]),
			Samples:      binary.LittleEndian.Uint64(b[16:24]),
		}
		b = b[24:]
	}

	if len(b) < 1 {
		return Outcome{}, fmt.Errorf("protocol: truncated max_rss presence flag")
	}
	hasMaxRSS := b[0] == 1
	b = b[1:]
	if hasMaxRSS {
		if len(b) < 8 {
			return Outcome{}, fmt.Errorf("protocol: truncated max_rss")
		}
		v := int64(binary.LittleEndian.Uint64(b[0:8]))
		mem.MaxRSS = &v
	}

	return Ok(PrepareStats{CPUTime: cpu, Memory: mem}), nil
}

// SendResponse encodes and frames outcome onto w.
func SendResponse(w io.Writer, o Outcome) error {
	return wire.WriteFrame(w, EncodeOutcome(o))
}
