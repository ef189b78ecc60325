package kfmt

import (
	"io"
	"testing"
)

func TestRingBufferReadWrite(t *testing.T) {
	var rb ringBuffer

	if _, err := rb.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("expected read on empty buffer to return io.EOF; got %v", err)
	}

	payload := []byte("the quick brown fox")
	if n, err := rb.Write(payload); n != len(payload) || err != nil {
		t.Fatalf("expected write to return (%d, nil); got (%d, %v)", len(payload), n, err)
	}

	got := make([]byte, len(payload))
	if n, err := rb.Read(got); n != len(payload) || err != nil {
		t.Fatalf("expected read to return (%d, nil); got (%d, %v)", len(payload), n, err)
	}

	if string(got) != string(payload) {
		t.Fatalf("expected to read back %q; got %q", payload, got)
	}
}

func TestRingBufferOverwritesOldestData(t *testing.T) {
	var rb ringBuffer

	// Fill the buffer twice over; only the last ringBufferSize-1 bytes
	// can be read back.
	for i := 0; i < 2*ringBufferSize; i++ {
		rb.Write([]byte{byte(i)})
	}

	var total int
	scratch := make([]byte, 64)
	for {
		n, err := rb.Read(scratch)
		total += n
		if err == io.EOF {
			break
		}
	}

	if exp := ringBufferSize - 1; total != exp {
		t.Fatalf("expected to read back %d bytes after overflow; got %d", exp, total)
	}
}
