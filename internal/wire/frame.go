// Package wire implements the length-prefixed framing used on the
// worker's end of the host–worker byte stream: len:u32-little-endian
// followed by exactly len bytes. It is deliberately silent on a maximum
// frame size — the caller's buffer allocator is the only bound, per
// SPEC_FULL.md §4.1.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

const headerSize = 4

// WriteFrame writes payload as one frame: a 4-byte little-endian length
// prefix followed by payload itself.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write length prefix: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r. A short read of zero bytes at the
// length prefix is reported as io.EOF — the clean end-of-stream signal
// the event loop uses to terminate without error. Any other partial
// read (at the header or at the body) is a wrapped I/O error.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [headerSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if n == 0 && err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("wire: read length prefix: %w", err)
	}
	length := binary.LittleEndian.Uint32(hdr[:])
	if length == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("wire: read payload: %w", err)
	}
	return buf, nil
}
