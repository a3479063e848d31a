package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func frame(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	return buf.Bytes()
}

func TestFrameRoundTrip(t *testing.T) {
	payload := []byte("hello world")
	encoded := frame(t, payload)

	var dec Decoder
	dec.Feed(encoded)
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: got %q, want %q", got, payload)
	}
	// Buffer drained: nothing more to emit.
	if got, _ := dec.Next(); got != nil {
		t.Errorf("expected no further frame, got %q", got)
	}
}

func TestPartialFrame(t *testing.T) {
	payload := []byte("partial delivery")
	encoded := frame(t, payload)

	// Every split point, including inside the length prefix.
	for cut := 0; cut < len(encoded); cut++ {
		var dec Decoder
		dec.Feed(encoded[:cut])
		if got, err := dec.Next(); err != nil || got != nil {
			t.Fatalf("cut %d: premature emit %q err %v", cut, got, err)
		}
		dec.Feed(encoded[cut:])
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("cut %d: Next failed: %v", cut, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("cut %d: payload mismatch", cut)
		}
	}
}

func TestMultipleFramesInBuffer(t *testing.T) {
	f1 := frame(t, []byte("first"))
	f2 := frame(t, []byte("second"))

	var dec Decoder
	dec.Feed(append(f1, f2...))

	got1, err := dec.Next()
	if err != nil || string(got1) != "first" {
		t.Fatalf("frame 1: got %q err %v", got1, err)
	}
	got2, err := dec.Next()
	if err != nil || string(got2) != "second" {
		t.Fatalf("frame 2: got %q err %v", got2, err)
	}
	if got, _ := dec.Next(); got != nil {
		t.Errorf("expected no third frame, got %q", got)
	}
}

func TestEmptyPayload(t *testing.T) {
	var dec Decoder
	dec.Feed(frame(t, nil))
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty payload, got %v", got)
	}
}

func TestNegativeLength(t *testing.T) {
	var dec Decoder
	dec.Feed([]byte{0xff, 0xff, 0xff, 0xff}) // len = -1

	_, err := dec.Next()
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestOversizedLength(t *testing.T) {
	head := make([]byte, 4)
	binary.BigEndian.PutUint32(head, uint32(MaxFrameSize+1))

	var dec Decoder
	dec.Feed(head)
	_, err := dec.Next()
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, MaxFrameSize+1))
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on failure, got %d bytes", buf.Len())
	}
}
