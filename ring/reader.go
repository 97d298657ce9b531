// reader.go — consumer-side framing recovery for a single ring.
//
// Reader wraps a Ring on the consumer side and tracks the per-ring
// sequence counter so it can detect gaps (dropped or reordered frames
// upstream of this ring) without maintaining any state the producer
// also touches.
//
// Next and Commit are split deliberately: Next moves the tail only past
// padding sentinels, zeroed slack and malformed frames, then reads and
// returns the next well-formed frame's payload, leaving the tail at that
// frame. Only Commit advances the tail past it and folds the frame's sequence
// into the gap detector. A caller that decides not to consume a frame
// it peeked (backpressure, §4.3) simply never calls Commit — the next
// Next() re-reads the same frame, and no gap is recorded for work that
// was never actually taken off the ring.
package ring

import (
	"sync/atomic"

	"supersonic/control"
	"supersonic/frame"
)

// sequenceMask bounds the ring sequence counter to the 31-bit space the
// control block's atomic i32 field can hold.
const sequenceMask = 0x7FFFFFFF

// Frame is a peeked record, valid until the next call to Next on the
// same Reader (Payload aliases the caller-supplied scratch buffer).
type Frame struct {
	Payload  []byte
	sequence uint32
	gap      uint32
	tailAt   uint32
	frameLen uint32
}

// Reader drains one ring's frames in order, recovering from padding
// sentinels, bad magics, and oversized lengths without ever blocking.
type Reader struct {
	ring       *Ring
	haveLast   bool
	lastSeq    uint32
	dropCount  *atomic.Uint32
	gapCounter *atomic.Uint32
	flags      *control.Flags
}

// NewReader creates a Reader over r with no remembered sequence, as if
// freshly started or just reset.
func NewReader(r *Ring) *Reader {
	return &Reader{ring: r}
}

// BindCounters attaches the drop counter, which Next updates as it skips
// malformed frames, and the sequence-gap counter, which Commit updates.
// Either may be nil.
func (rd *Reader) BindCounters(drops, gaps *atomic.Uint32) {
	rd.dropCount = drops
	rd.gapCounter = gaps
}

// BindFlags attaches the status word this reader raises FragmentedMsg
// on when it meets a frame too large to ever have been written whole.
// May be nil, in which case the bit is simply never raised.
func (rd *Reader) BindFlags(flags *control.Flags) {
	rd.flags = flags
}

// Reset clears the remembered sequence so a subsequent frame is never
// flagged as a gap relative to state from before an external purge
// (scheduler clear, §4.2's cancellation contract).
func (rd *Reader) Reset() {
	rd.haveLast = false
}

// Next returns the next well-formed frame's payload, copied into
// scratch, or ok=false if the ring is currently empty. It transparently
// skips padding sentinels and resyncs past malformed frames, counting
// drops as it goes; neither of those advance the "committed" sequence
// state, since they were never valid frames to begin with.
func (rd *Reader) Next(scratch []byte) (f Frame, ok bool) {
	for {
		head := rd.ring.head.Load()
		tail := rd.ring.tail.Load()
		if head == tail {
			return Frame{}, false
		}
		if rd.ring.capacity-tail < frame.HeaderSize {
			// Zeroed slack the writer left when no sentinel fit before
			// the physical end: the next frame is at offset 0.
			rd.ring.tail.Store(0)
			continue
		}

		hdr := rd.readHeader(tail)
		switch hdr.Magic {
		case frame.PaddingMagic:
			rd.ring.tail.Store(0)
			continue

		case frame.MessageMagic:
			if hdr.Length < frame.HeaderSize {
				rd.countDrop()
				rd.ring.tail.Store((tail + 1) % rd.ring.capacity)
				continue
			}
			payloadLen := hdr.Length - frame.HeaderSize
			if hdr.Length > rd.ring.capacity || payloadLen > frame.MaxPayload {
				rd.raiseFragmented()
				rd.countDrop()
				rd.ring.tail.Store((tail + hdr.Length) % rd.ring.capacity)
				continue
			}
			n := copy(scratch, rd.payloadAt(tail, payloadLen))
			return Frame{
				Payload:  scratch[:n],
				sequence: hdr.Sequence,
				gap:      rd.pendingGap(hdr.Sequence),
				tailAt:   tail,
				frameLen: hdr.Length,
			}, true

		default:
			// Not a frame we recognize: resync defensively one byte at
			// a time rather than trusting an unrelated length field.
			rd.countDrop()
			rd.ring.tail.Store((tail + 1) % rd.ring.capacity)
			continue
		}
	}
}

// Commit advances the tail past f and folds f's sequence into the gap
// detector. Must be called with the most recent Frame returned by Next;
// calling it with a stale Frame after another Next corrupts framing.
func (rd *Reader) Commit(f Frame) {
	if rd.gapCounter != nil && f.gap > 0 {
		rd.gapCounter.Add(f.gap)
	}
	rd.lastSeq = f.sequence
	rd.haveLast = true
	rd.ring.tail.Store((f.tailAt + f.frameLen) % rd.ring.capacity)
}

func (rd *Reader) countDrop() {
	if rd.dropCount != nil {
		rd.dropCount.Add(1)
	}
}

func (rd *Reader) raiseFragmented() {
	if rd.flags != nil {
		rd.flags.Set(control.FragmentedMsg)
	}
}

// pendingGap computes the bounded gap size that Commit would record for
// seq, without mutating any state — so a peeked-but-not-committed frame
// never pollutes gap detection.
func (rd *Reader) pendingGap(seq uint32) uint32 {
	if !rd.haveLast {
		return 0
	}
	expected := (rd.lastSeq + 1) & sequenceMask
	if seq == expected {
		return 0
	}
	return (seq - expected) & sequenceMask
}

// readHeader reads the 16-byte header at offset pos, splitting the read
// across the physical wrap point if a corrupted producer ever left one
// straddling it. Well-formed streams never exercise the split path,
// since the writer always pads or zeroes rather than letting a frame
// cross the end of the buffer.
func (rd *Reader) readHeader(pos uint32) frame.Header {
	if pos+frame.HeaderSize <= rd.ring.capacity {
		return frame.Decode(rd.ring.buf[pos : pos+frame.HeaderSize])
	}
	var scratch [frame.HeaderSize]byte
	first := rd.ring.capacity - pos
	copy(scratch[:first], rd.ring.buf[pos:])
	copy(scratch[first:], rd.ring.buf[:frame.HeaderSize-first])
	return frame.Decode(scratch[:])
}

// payloadAt returns the n-byte payload following the header at pos.
// Payloads never straddle the wrap (the writer guarantees this), so a
// direct contiguous slice is always safe here.
func (rd *Reader) payloadAt(pos uint32, n uint32) []byte {
	start := (pos + frame.HeaderSize) % rd.ring.capacity
	return rd.ring.buf[start : start+n]
}
