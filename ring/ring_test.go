package ring

import (
	"sync/atomic"
	"testing"

	"supersonic/frame"
)

func TestWriteReadRoundTrip(t *testing.T) {
	r := New(256)
	payload := []byte("hello bundle")
	if !r.Write(payload) {
		t.Fatal("write should succeed on an empty ring")
	}

	rd := NewReader(r)
	scratch := make([]byte, frame.MaxPayload)
	f, ok := rd.Next(scratch)
	if !ok {
		t.Fatal("expected a frame")
	}
	if string(f.Payload) != string(payload) {
		t.Fatalf("got %q, want %q", f.Payload, payload)
	}
	rd.Commit(f)

	if _, ok := rd.Next(scratch); ok {
		t.Fatal("ring should be empty after consuming the only frame")
	}
}

func TestWriteFailsWhenFull(t *testing.T) {
	r := New(32) // room for exactly one 16-byte-header + 0-byte frame, minus the 1-byte gap
	if !r.Write(nil) {
		t.Fatal("first write should succeed")
	}
	if r.Write(nil) {
		t.Fatal("second write should fail: one byte of the free-bytes formula is always reserved")
	}
}

func TestWriteAtExactFreeBytesBoundary(t *testing.T) {
	// capacity 32: freeBytes() on an empty ring is capacity-1 = 31.
	// A 15-byte payload needs exactly 31 bytes (16 header + 15), the
	// largest write that fits; one byte more must fail.
	r := New(32)
	if !r.Write(make([]byte, 15)) {
		t.Fatal("write at the exact free-bytes boundary should succeed")
	}
}

func TestWriteOneByteOverFreeBytesBoundaryFails(t *testing.T) {
	r := New(32)
	if r.Write(make([]byte, 16)) {
		t.Fatal("write needing one more byte than is free should fail")
	}
}

func TestWrapWritesPaddingSentinel(t *testing.T) {
	// Capacity 256. Five 32-byte payloads (48 bytes on the wire each)
	// fill the first 240 bytes, leaving exactly 16 — room for a header
	// but no payload. With only the first frame consumed, a 48-byte
	// frame at offset 0 would reach the tail at 48, so the sixth write
	// must fail. Consuming the second frame as well moves the tail to
	// 96, and the writer then takes the pad-and-wrap path.
	r := New(256)
	rd := NewReader(r)
	scratch := make([]byte, frame.MaxPayload)

	for i := 0; i < 5; i++ {
		payload := make([]byte, 32)
		payload[0] = byte(i)
		if !r.Write(payload) {
			t.Fatalf("write %d unexpectedly failed", i)
		}
	}

	f, ok := rd.Next(scratch)
	if !ok || f.Payload[0] != 0 {
		t.Fatalf("expected frame 0 before wrapping, got ok=%v payload=%v", ok, f.Payload)
	}
	rd.Commit(f)

	sixth := make([]byte, 32)
	sixth[0] = 5
	if r.Write(sixth) {
		t.Fatal("sixth write should fail while the wrapped frame would reach the tail")
	}

	f, ok = rd.Next(scratch)
	if !ok || f.Payload[0] != 1 {
		t.Fatalf("expected frame 1 before wrapping, got ok=%v payload=%v", ok, f.Payload)
	}
	rd.Commit(f)

	if !r.Write(sixth) {
		t.Fatal("sixth write should succeed via the padding-and-wrap path")
	}

	for i := 2; i < 6; i++ {
		f, ok := rd.Next(scratch)
		if !ok {
			t.Fatalf("expected frame %d", i)
		}
		if f.Payload[0] != byte(i) {
			t.Fatalf("frame %d: got tag %d, want %d", i, f.Payload[0], i)
		}
		rd.Commit(f)
	}
}

func TestSequenceGapDetection(t *testing.T) {
	r := New(4096)
	rd := NewReader(r)
	var gaps atomic.Uint32

	rd.BindCounters(nil, &gaps)

	scratch := make([]byte, frame.MaxPayload)
	r.Write([]byte("a"))
	f, _ := rd.Next(scratch)
	rd.Commit(f)

	// simulate a dropped frame upstream by hand-advancing the sequence
	r.seq.Add(1)
	r.Write([]byte("b"))
	f, _ = rd.Next(scratch)
	if f.gap == 0 {
		t.Fatal("expected a nonzero gap after skipping a sequence number")
	}
	rd.Commit(f)
	if gaps.Load() == 0 {
		t.Fatal("gap counter should have been incremented on commit")
	}
}

func TestBackpressureLeavesFrameUncommitted(t *testing.T) {
	r := New(256)
	r.Write([]byte("x"))

	rd := NewReader(r)
	scratch := make([]byte, frame.MaxPayload)

	f, ok := rd.Next(scratch)
	if !ok {
		t.Fatal("expected a frame")
	}
	// Simulate backpressure: peek but never commit.
	_ = f

	f2, ok := rd.Next(scratch)
	if !ok {
		t.Fatal("an uncommitted frame must still be readable")
	}
	if string(f2.Payload) != "x" {
		t.Fatalf("got %q, want %q", f2.Payload, "x")
	}
}

func TestResetClearsGapState(t *testing.T) {
	r := New(4096)
	rd := NewReader(r)
	scratch := make([]byte, frame.MaxPayload)

	r.Write([]byte("a"))
	f, _ := rd.Next(scratch)
	rd.Commit(f)

	rd.Reset()
	r.seq.Add(10) // simulate an external purge that skips sequence numbers
	r.Write([]byte("b"))
	f2, _ := rd.Next(scratch)
	if f2.gap != 0 {
		t.Fatal("gap should not be detected immediately after Reset")
	}
}
