// layout.go — shared-memory region layout.
//
// Every offset here is derived at compile time from the buffer size
// constants, mirroring the original engine's BUFFER_LAYOUT: a single
// source of truth the control thread can read once at startup instead
// of hardcoding offsets on its own side of the boundary.
package layout

const (
	InBufferSize    = 786432
	OutBufferSize   = 131072
	DebugBufferSize = 65536
	ControlSize     = 40
	MetricsSize     = 128
	TimeBaseSize    = 16 // base_offset (f64, 8B) + drift_ms (i32, 4B) + global_ms (i32, 4B)

	// NodeTreeEntrySize matches nodetree.Entry's footprint (int32 id and
	// parent id, a bool padded to 4 bytes, two int32 sibling pointers, a
	// head-child pointer, and a 32-byte def-name field): 4+4+4+4+4+4+32.
	NodeTreeEntrySize  = 56
	NodeTreeMaxNodes   = 1024
	NodeTreeHeaderSize = 12 // node_count, version, dropped_count: three u32
	NodeTreeSize       = NodeTreeHeaderSize + NodeTreeMaxNodes*NodeTreeEntrySize

	// CaptureFrames/CaptureChannels size the optional interleaved
	// capture region (§12's test-fixture recording path): one second
	// of stereo float32 audio at a representative sample rate.
	CaptureFrames   = 48000
	CaptureChannels = 2
	CaptureSize     = CaptureFrames * CaptureChannels * 4
)

const (
	InBufferStart    = 0
	OutBufferStart   = InBufferStart + InBufferSize
	DebugBufferStart = OutBufferStart + OutBufferSize
	ControlStart     = DebugBufferStart + DebugBufferSize
	MetricsStart     = ControlStart + ControlSize
	NodeTreeStart    = MetricsStart + MetricsSize
	TimeBaseStart    = NodeTreeStart + NodeTreeSize
	CaptureStart     = TimeBaseStart + TimeBaseSize

	TotalSize = CaptureStart + CaptureSize
)

const MaxMessageSize = InBufferSize - 16

// Descriptor is the layout exported to the control thread so it can
// locate every region without duplicating these constants on its own
// side of the boundary.
type Descriptor struct {
	InBufferStart, InBufferSize       uint32
	OutBufferStart, OutBufferSize     uint32
	DebugBufferStart, DebugBufferSize uint32
	ControlStart, ControlSize         uint32
	MetricsStart, MetricsSize         uint32
	NodeTreeStart, NodeTreeSize       uint32
	TimeBaseStart, TimeBaseSize       uint32
	CaptureStart, CaptureSize         uint32
	TotalSize                         uint32
	MaxMessageSize                    uint32
}

// Get returns the compile-time region layout.
func Get() Descriptor {
	return Descriptor{
		InBufferStart:    InBufferStart,
		InBufferSize:     InBufferSize,
		OutBufferStart:   OutBufferStart,
		OutBufferSize:    OutBufferSize,
		DebugBufferStart: DebugBufferStart,
		DebugBufferSize:  DebugBufferSize,
		ControlStart:     ControlStart,
		ControlSize:      ControlSize,
		MetricsStart:     MetricsStart,
		MetricsSize:      MetricsSize,
		NodeTreeStart:    NodeTreeStart,
		NodeTreeSize:     NodeTreeSize,
		TimeBaseStart:    TimeBaseStart,
		TimeBaseSize:     TimeBaseSize,
		CaptureStart:     CaptureStart,
		CaptureSize:      CaptureSize,
		TotalSize:        TotalSize,
		MaxMessageSize:   MaxMessageSize,
	}
}

// String renders the descriptor as a single human-readable line for
// startup banners and diagnostic dumps, appending each field into one
// byte buffer and returning it through a zero-copy byte-to-string
// conversion rather than building it through fmt's reflection path.
func (d Descriptor) String() string {
	b := make([]byte, 0, 256)
	b = appendField(b, "in", d.InBufferStart, d.InBufferSize)
	b = appendField(b, "out", d.OutBufferStart, d.OutBufferSize)
	b = appendField(b, "debug", d.DebugBufferStart, d.DebugBufferSize)
	b = appendField(b, "control", d.ControlStart, d.ControlSize)
	b = appendField(b, "metrics", d.MetricsStart, d.MetricsSize)
	b = appendField(b, "nodetree", d.NodeTreeStart, d.NodeTreeSize)
	b = appendField(b, "timebase", d.TimeBaseStart, d.TimeBaseSize)
	b = appendField(b, "capture", d.CaptureStart, d.CaptureSize)
	return b2s(b)
}

func appendField(b []byte, name string, start, size uint32) []byte {
	b = append(b, name...)
	b = append(b, '=')
	b = appendUint(b, start)
	b = append(b, ':')
	b = appendUint(b, size)
	b = append(b, ' ')
	return b
}

func appendUint(b []byte, v uint32) []byte {
	if v == 0 {
		return append(b, '0')
	}
	var tmp [10]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(b, tmp[i:]...)
}
