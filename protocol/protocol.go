// Package protocol implements the length-prefixed frame format used on the wire.
//
// It solves TCP's sticky packet problem with the simplest possible framing: a 4-byte
// big-endian signed length followed by exactly that many payload bytes. The payload is
// one serialized record; the frame itself carries nothing else.
//
// Frame format (both directions, identical):
//
//	0        4
//	┌────────┬───────────────────┐
//	│  len   │  payload ...      │
//	│ int32  │  len bytes        │
//	└────────┴───────────────────┘
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single payload. A length above it (or below zero) means the
// peer is not speaking this protocol, and the connection must be failed.
const MaxFrameSize = 16 << 20

// Error marks a frame-level fault. It is fatal to the connection that produced it.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "protocol: " + e.Reason
}

// WriteFrame frames payload onto w. The length is computed from the finished payload,
// so a failed serialization upstream never leaves a partial frame on the wire.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return &Error{Reason: fmt.Sprintf("frame length %d exceeds limit %d", len(payload), MaxFrameSize)}
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// Decoder reassembles frames from a byte stream. Feed it whatever the transport
// delivers — zero, partial, or several frames per read — and drain complete payloads
// with Next. The decoder keeps no state across frames; each frame self-delimits.
type Decoder struct {
	buf bytes.Buffer
}

// Feed appends transport bytes to the pending buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf.Write(p)
}

// Next returns the payload of the next complete frame, or nil when the buffer does not
// yet hold one. A negative or oversized length returns a *Error; the connection must
// then be closed, since the stream position is no longer trustworthy.
func (d *Decoder) Next() ([]byte, error) {
	if d.buf.Len() < 4 {
		return nil, nil
	}
	head := d.buf.Bytes()[:4]
	length := int32(binary.BigEndian.Uint32(head))
	if length < 0 {
		return nil, &Error{Reason: fmt.Sprintf("negative frame length %d", length)}
	}
	if length > MaxFrameSize {
		return nil, &Error{Reason: fmt.Sprintf("frame length %d exceeds limit %d", length, MaxFrameSize)}
	}
	if d.buf.Len() < 4+int(length) {
		return nil, nil
	}
	d.buf.Next(4)
	payload := make([]byte, length)
	copy(payload, d.buf.Next(int(length)))
	return payload, nil
}
