// ring.go
//
// Lock-free single-producer/single-consumer byte ring carrying framed
// records (see package frame). One Ring backs each of IN, OUT and DBG;
// only the capacity differs between them.
//
// Producer and consumer cursors live on separate cache lines to avoid
// false sharing. Each ring is strictly single-producer / single-consumer:
// the render thread is always one side, a control-thread peer the other.
package ring

import (
	"sync/atomic"
	"unsafe"

	"supersonic/frame"
)

// Ring is a fixed-capacity byte buffer shared between one producer and
// one consumer. head is the producer's write position, tail the
// consumer's read position; both are byte offsets, wrapping modulo
// capacity.
type Ring struct {
	_    [64]byte
	head atomic.Uint32 // producer cursor

	_    [60]byte
	tail atomic.Uint32 // consumer cursor

	_   [60]byte
	seq atomic.Uint32 // per-ring frame sequence counter

	capacity uint32
	buf      []byte

	drops *atomic.Uint32 // optional: bumped on BUFFER_FULL, may be nil
}

// New allocates a ring of the given byte capacity. Capacity does not
// need to be a power of two: ring sizes here come from the shared-memory
// layout (§3.1), not from a masking convenience.
func New(capacity uint32) *Ring {
	if capacity < frame.HeaderSize {
		panic("ring: capacity smaller than one header")
	}
	return &Ring{capacity: capacity, buf: make([]byte, capacity)}
}

// BindDrops attaches a counter incremented every time Write fails due to
// insufficient space. Binding is optional; an unbound ring simply does
// not count drops.
func (r *Ring) BindDrops(counter *atomic.Uint32) {
	r.drops = counter
}

func (r *Ring) freeBytes(head, tail uint32) uint32 {
	return (r.capacity - 1 - head + tail) % r.capacity
}

// Write appends payload as a single framed record. Returns false,
// incrementing the bound drop counter if any, if there is not enough
// room for header-plus-payload, or, when the frame has to wrap to
// offset 0, not enough room before the consumer's tail.
func (r *Ring) Write(payload []byte) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	need := uint32(frame.HeaderSize) + uint32(len(payload))
	if r.freeBytes(head, tail) < need {
		if r.drops != nil {
			r.drops.Add(1)
		}
		return false
	}

	toEnd := r.capacity - head
	if need > toEnd {
		// The toEnd bytes are given up to the wrap, so the frame must
		// fit in front of the tail without reaching it.
		if need >= tail {
			if r.drops != nil {
				r.drops.Add(1)
			}
			return false
		}
		if toEnd >= frame.HeaderSize {
			frame.Encode(r.buf[head:head+frame.HeaderSize], frame.Header{Magic: frame.PaddingMagic})
		} else {
			clear(r.buf[head : head+toEnd])
		}
		head = 0
	}

	seq := r.seq.Add(1) - 1
	frame.Encode(r.buf[head:head+frame.HeaderSize], frame.Header{
		Magic:    frame.MessageMagic,
		Length:   need,
		Sequence: seq,
	})
	copy(r.buf[head+frame.HeaderSize:head+need], payload)

	r.head.Store((head + need) % r.capacity)
	return true
}

// Capacity returns the ring's fixed byte capacity.
func (r *Ring) Capacity() uint32 { return r.capacity }

// UsedBytes returns the number of bytes currently occupied between the
// consumer's tail and the producer's head, for the instantaneous
// used/peak metrics pair.
func (r *Ring) UsedBytes() uint32 {
	head := r.head.Load()
	tail := r.tail.Load()
	return (head + r.capacity - tail) % r.capacity
}

// BasePointer returns the address of the ring's backing storage, for
// one-time host-side introspection only. Nothing in this package ever
// reads this value back.
func (r *Ring) BasePointer() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(r.buf)))
}
