// engine.go — the synthesis engine as an external collaborator.
//
// The engine is deliberately not implemented here: per the scope this
// repository covers, synthesis itself (graph execution, unit
// generators, buffer/bus management) is an external collaborator the
// dispatcher drives through this interface. What the original exposes
// as C function pointers into the engine's reply machinery is
// represented here as a capability interface the engine implementation
// receives on construction, rather than as package-level callback
// variables — the render thread holds the Engine; the Engine holds a
// ReplySink.
package engine

import "supersonic/scheduler"

// ReplySink is how the engine publishes outbound replies and log
// lines without knowing anything about rings, framing, or the control
// thread on the other side of them. The dispatcher supplies an
// implementation backed by the OUT and DBG rings.
type ReplySink interface {
	// Reply writes a command-protocol reply payload to the outbound
	// ring, addressed to reply (opaque, never parsed).
	Reply(payload []byte, reply scheduler.ReplyAddr) bool

	// Log writes a UTF-8 text line (without a trailing newline) to the
	// debug ring.
	Log(line string)
}

// NodeEvent carries the fields the node-tree mirror needs out of a
// node lifecycle notification, independent of the engine's own node
// representation.
type NodeEvent struct {
	ID            int32
	ParentID      int32
	IsGroup       bool
	PrevSiblingID int32
	NextSiblingID int32
	HeadChildID   int32
	DefName       string
}

// NodeObserver receives node lifecycle notifications on the render
// thread. The node-tree mirror is the dispatcher's implementation.
type NodeObserver interface {
	NodeAdded(NodeEvent)
	NodeRemoved(id int32)
	NodeMoved(NodeEvent)
}

// Options mirrors the 16 x u32 engine option slots read from the
// shared region at init_memory time.
type Options struct {
	BufferCount        uint32
	MaxNodes           uint32
	MaxGraphDefs       uint32
	MaxWireBuffers     uint32
	AudioBusChannels   uint32
	InputChannels      uint32
	OutputChannels     uint32
	ControlBusChannels uint32
	BufferLength       uint32 // must be 128
	RealtimeMemSize    uint32
	RNGCount           uint32
	Realtime           bool // must be false
	MemoryLocking      bool // must be false
	LoadGraphDefs      bool
	SampleRate         uint32
	Verbosity          uint32
	TransportMode      uint32
}

// Engine is the capability interface the dispatcher drives once per
// quantum. A concrete synthesis engine implements this; this
// repository provides no implementation, matching its scope.
type Engine interface {
	// DispatchMessage handles a single non-bundle command immediately.
	DispatchMessage(payload []byte, reply scheduler.ReplyAddr)

	// DispatchBundle handles a bundle payload, either immediately (time
	// tag 0 or 1) or at the sample offset the dispatcher has already
	// set via SetSampleOffset.
	DispatchBundle(payload []byte, reply scheduler.ReplyAddr)

	// SetSampleOffset records the integer and fractional sample offset
	// within the current quantum at which the next DispatchBundle call
	// should take effect. Reset to (0, 0) after the scheduled-execution
	// phase finishes.
	SetSampleOffset(sampleOffset int, subsampleOffset float64)

	// SetInputBus hands the engine the planar (channel-major) input
	// samples the host wrote for this quantum, before RunQuantum.
	SetInputBus(samples []float32)

	// RunQuantum executes one quantum of synthesis into the engine's
	// own output bus.
	RunQuantum()

	// OutputBus returns the planar (channel-major) output samples
	// produced by the most recent RunQuantum call.
	OutputBus() []float32

	// Ready reports whether construction succeeded; false makes the
	// render entrypoint a permanent no-op per the hard-error policy for
	// init failures.
	Ready() bool
}
