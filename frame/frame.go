// frame.go — ring frame header encode/decode.
//
// Every message that crosses a ring is a (header, payload) pair. The
// header is 16 bytes, little-endian, and carries enough information for
// the consumer to recover framing from the raw byte stream without any
// out-of-band bookkeeping:
//
//	magic (u32) | length (u32) | sequence (u32) | reserved (u32)
//
// length includes the header itself. A magic of PaddingMagic marks a
// header-only sentinel record: the writer stamps one when the next real
// frame would not fit before the ring's physical end, then wraps the
// write position to zero.
package frame

import "encoding/binary"

// HeaderSize is the fixed byte length of a frame header.
const HeaderSize = 16

// MaxPayload bounds a single frame's payload so a corrupt length field
// can never be mistaken for a plausible allocation request.
const MaxPayload = 1 << 16

const (
	// MessageMagic marks a frame carrying a real payload.
	MessageMagic uint32 = 0xDEADBEEF
	// PaddingMagic marks a header-only sentinel at the tail of a ring
	// that could not hold the next frame before wrapping.
	PaddingMagic uint32 = 0xBADDCAFE
)

// Header is the decoded form of a frame's 16-byte on-wire header.
type Header struct {
	Magic    uint32
	Length   uint32 // includes HeaderSize
	Sequence uint32
	Reserved uint32
}

// Encode writes h into buf[:HeaderSize]. Panics if buf is too short,
// which is a caller bug, not a runtime condition.
func Encode(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Length)
	binary.LittleEndian.PutUint32(buf[8:12], h.Sequence)
	binary.LittleEndian.PutUint32(buf[12:16], h.Reserved)
}

// Decode reads a header out of buf[:HeaderSize].
func Decode(buf []byte) Header {
	return Header{
		Magic:    binary.LittleEndian.Uint32(buf[0:4]),
		Length:   binary.LittleEndian.Uint32(buf[4:8]),
		Sequence: binary.LittleEndian.Uint32(buf[8:12]),
		Reserved: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// bundlePrefix is the ASCII "#bundle" tag plus its null terminator, the
// marker that distinguishes a bundle payload from a plain message.
var bundlePrefix = [8]byte{'#', 'b', 'u', 'n', 'd', 'l', 'e', 0}

// IsBundle reports whether payload opens with the bundle marker and is
// long enough to carry a time tag after it.
func IsBundle(payload []byte) bool {
	if len(payload) < 16 {
		return false
	}
	return *(*[8]byte)(payload[:8]) == bundlePrefix
}

// TimeTag extracts the big-endian 64-bit protocol time tag that follows
// the bundle marker. Callers must have already confirmed IsBundle.
func TimeTag(payload []byte) uint64 {
	return binary.BigEndian.Uint64(payload[8:16])
}
