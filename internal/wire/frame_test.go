package wire

import (
	"bytes"
	"io"
	"testing"
)

func TestFrame_RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("hello"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}
	for i, in := range cases {
		var buf bytes.Buffer
		if err := WriteFrame(&buf, in); err != nil {
			t.Fatalf("case %d: WriteFrame error: %v", i, err)
		}
		out, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("case %d: ReadFrame error: %v", i, err)
		}
		if len(out) != len(in) {
			t.Fatalf("case %d: got %d bytes, want %d", i, len(out), len(in))
		}
		if !bytes.Equal(out, in) {
			t.Fatalf("case %d: payload mismatch", i)
		}
	}
}

func TestFrame_TwoFramesBackToBack(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("request-params")); err != nil {
		t.Fatalf("write frame 1: %v", err)
	}
	if err := WriteFrame(&buf, []byte("/tmp/dest")); err != nil {
		t.Fatalf("write frame 2: %v", err)
	}
	f1, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read frame 1: %v", err)
	}
	if string(f1) != "request-params" {
		t.Fatalf("frame 1 = %q", f1)
	}
	f2, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read frame 2: %v", err)
	}
	if string(f2) != "/tmp/dest" {
		t.Fatalf("frame 2 = %q", f2)
	}
}

func TestFrame_CleanEOF(t *testing.T) {
	r := bytes.NewReader(nil)
	_, err := ReadFrame(r)
	if err != io.EOF {
		t.Fatalf("expected io.EOF at clean boundary, got %v", err)
	}
}

func TestFrame_TruncatedHeaderIsIoError(t *testing.T) {
	r := bytes.NewReader([]byte{0x01, 0x02})
	_, err := ReadFrame(r)
	if err == nil || err == io.EOF {
		t.Fatalf("expected a wrapped I/O error for a truncated header, got %v", err)
	}
}

func TestFrame_TruncatedBodyIsIoError(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("0123456789")); err != nil {
		t.Fatalf("write: %v", err)
	}
	truncated := buf.Bytes()[:6] // header + 2 of 10 payload bytes
	_, err := ReadFrame(bytes.NewReader(truncated))
	if err == nil {
		t.Fatalf("expected error for truncated body")
	}
}

func BenchmarkFrame_RoundTrip(b *testing.B) {
	payload := bytes.Repeat([]byte{0x42}, 8192)
	var buf bytes.Buffer
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_ = WriteFrame(&buf, payload)
		_, _ = ReadFrame(&buf)
	}
}
