package protocol

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/pvfkit/prepare-worker/internal/wire"
)

func TestEncodeDecodePrepareRequest_RoundTrip(t *testing.T) {
	cases := []PrepareRequest{
		{Blob: []byte("program"), ExecutorParams: []byte("params"), PrepTimeout: 5 * time.Second},
		{Blob: nil, ExecutorParams: nil, PrepTimeout: 0},
		{Blob: bytes.Repeat([]byte{1}, 1 << 16), ExecutorParams: []byte{}, PrepTimeout: 250*time.Millisecond + 123*time.Microsecond},
	}
	for i, in := range cases {
		payload := EncodePrepareRequest(in)
		out, err := DecodePrepareRequest(payload)
		if err != nil {
			t.Fatalf("case %d: decode error: %v", i, err)
		}
		if !bytes.Equal(out.Blob, in.Blob) && !(len(out.Blob) == 0 && len(in.Blob) == 0) {
			t.Fatalf("case %d: blob mismatch", i)
		}
		if !bytes.Equal(out.ExecutorParams, in.ExecutorParams) && !(len(out.ExecutorParams) == 0 && len(in.ExecutorParams) == 0) {
			t.Fatalf("case %d: executor params mismatch", i)
		}
		if out.PrepTimeout != in.PrepTimeout {
			t.Fatalf("case %d: timeout mismatch: got %v want %v", i, out.PrepTimeout, in.PrepTimeout)
		}
	}
}

func TestRecvRequest_TwoFrames(t *testing.T) {
	var buf bytes.Buffer
	prep := PrepareRequest{Blob: []byte("blob"), ExecutorParams: []byte("ep"), PrepTimeout: time.Second}
	if err := wire.WriteFrame(&buf, EncodePrepareRequest(prep)); err != nil {
		t.Fatalf("write frame 1: %v", err)
	}
	if err := wire.WriteFrame(&buf, []byte("/var/cache/artifact.bin")); err != nil {
		t.Fatalf("write frame 2: %v", err)
	}

	req, err := RecvRequest(&buf)
	if err != nil {
		t.Fatalf("RecvRequest error: %v", err)
	}
	if string(req.Prepare.Blob) != "blob" {
		t.Fatalf("blob = %q", req.Prepare.Blob)
	}
	if req.Destination != "/var/cache/artifact.bin" {
		t.Fatalf("destination = %q", req.Destination)
	}
}

func TestRecvRequest_CleanEOFBeforeFirstFrame(t *testing.T) {
	_, err := RecvRequest(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestRecvRequest_EmptyDestinationRejected(t *testing.T) {
	var buf bytes.Buffer
	prep := PrepareRequest{Blob: []byte("b"), PrepTimeout: time.Second}
	_ = wire.WriteFrame(&buf, EncodePrepareRequest(prep))
	_ = wire.WriteFrame(&buf, []byte{})

	_, err := RecvRequest(&buf)
	if err == nil {
		t.Fatalf("expected error for empty destination path")
	}
}

func TestRecvRequest_MalformedFirstFrame(t *testing.T) {
	var buf bytes.Buffer
	_ = wire.WriteFrame(&buf, []byte{0xFF}) // too short to be a valid request
	_, err := RecvRequest(&buf)
	if err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRecvRequest_StreamEndsBetweenFrames(t *testing.T) {
	var buf bytes.Buffer
	prep := PrepareRequest{Blob: []byte("b"), PrepTimeout: time.Second}
	_ = wire.WriteFrame(&buf, EncodePrepareRequest(prep))
	_, err := RecvRequest(&buf)
	if err == nil {
		t.Fatalf("expected error when stream ends before destination frame")
	}
}
