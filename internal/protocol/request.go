// Package protocol implements the request/response codec described in
// SPEC_FULL.md §4.2: a request is two frames (PrepareRequest, then the
// destination path), a response is one frame (the encoded Outcome).
// Framing itself is delegated to internal/wire; this package only
// knows how to lay out the payload of each frame.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/pvfkit/prepare-worker/internal/wire"
)

// PrepareRequest is the immutable value the host sends per job: the
// untrusted program blob, opaque executor parameters forwarded to the
// compiler, and the process-CPU budget for this compile.
type PrepareRequest struct {
	Blob           []byte
	ExecutorParams []byte
	PrepTimeout    time.Duration
}

// Request bundles the decoded PrepareRequest with the destination path
// the artifact must be written to on success.
type Request struct {
	Prepare     PrepareRequest
	Destination string
}

// encodeDuration serializes a duration as a platform-agnostic
// seconds+nanoseconds tuple, matching SPEC_FULL.md §4.2.
func encodeDuration(d time.Duration) [12]byte {
	var b [12]byte
	secs := int64(d / time.Second)
	nanos := int32(d % time.Second)
	binary.LittleEndian.PutUint64(b[0:8], uint64(secs))
	binary.LittleEndian.PutUint32(b[8:12], uint32(nanos))
	return b
}

func decodeDuration(b []byte) (time.Duration, error) {
	if len(b) != 12 {
		return 0, fmt.Errorf("protocol: duration tuple has %d bytes, want 12", len(b))
	}
	secs := int64(binary.LittleEndian.Uint64(b[0:8]))
	nanos := int32(binary.LittleEndian.Uint32(b[8:12]))
	return time.Duration(secs)*time.Second + time.Duration(nanos), nil
}

// EncodePrepareRequest serializes req into a single frame payload.
func EncodePrepareRequest(req PrepareRequest) []byte {
	buf := make([]byte, 0, 4+len(req.Blob)+4+len(req.ExecutorParams)+12)
	var lenBuf [4]byte

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(req.Blob)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, req.Blob...)

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(req.ExecutorParams)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, req.ExecutorParams...)

	durBuf := encodeDuration(req.PrepTimeout)
	buf = append(buf, durBuf[:]...)
	return buf
}

// DecodePrepareRequest is the inverse of EncodePrepareRequest.
func DecodePrepareRequest(payload []byte) (PrepareRequest, error) {
	var req PrepareRequest
	rest := payload

	blob, rest, err := readLenPrefixed(rest)
	if err != nil {
		return req, fmt.Errorf("protocol: decode blob: %w", err)
	}
	params, rest, err := readLenPrefixed(rest)
	if err != nil {
		return req, fmt.Errorf("protocol: decode executor params: %w", err)
	}
	if len(rest) != 12 {
		return req, fmt.Errorf("protocol: trailing duration tuple has %d bytes, want 12", len(rest))
	}
	timeout, err := decodeDuration(rest)
	if err != nil {
		return req, err
	}
	req.Blob = blob
	req.ExecutorParams = params
	req.PrepTimeout = timeout
	return req, nil
}

func readLenPrefixed(b []byte) (field, rest []byte, err error) {
	if len(b) < 4 {
		return nil, nil, fmt.Errorf("buffer too short for length prefix (%d bytes)", len(b))
	}
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	if uint64(len(b)) < uint64(n) {
		return nil, nil, fmt.Errorf("buffer too short for declared length %d (have %d)", n, len(b))
	}
	return b[:n], b[n:], nil
}

// RecvRequest reads the two request frames from r and validates the
// destination path is well-formed for the host platform.
func RecvRequest(r io.Reader) (Request, error) {
	var req Request

	f1, err := wire.ReadFrame(r)
	if err != nil {
		return req, err // propagate io.EOF verbatim so the event loop can tell clean shutdown apart
	}
	prep, err := DecodePrepareRequest(f1)
	if err != nil {
		return req, fmt.Errorf("protocol: malformed request frame: %w", err)
	}

	f2, err := wire.ReadFrame(r)
	if err != nil {
		if err == io.EOF {
			return req, fmt.Errorf("protocol: stream ended between request frames: %w", io.ErrUnexpectedEOF)
		}
		return req, err
	}
	dest := string(f2)
	if dest == "" {
		return req, fmt.Errorf("protocol: empty destination path")
	}
	if filepath.Clean(dest) == "." {
		return req, fmt.Errorf("protocol: invalid destination path %q", dest)
	}

	req.Prepare = prep
	req.Destination = dest
	return req, nil
}
