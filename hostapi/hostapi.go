// hostapi.go — the flat entrypoint surface a host process drives.
//
// The original exposes a process-global set of C functions to its
// embedding WebAssembly runtime: get_ring_buffer_base, init_memory,
// process_audio, and the rest of §6.1's table, all operating on module-
// level globals rather than a receiver. Host reproduces that surface
// as methods on a single value instead of package-level globals — one
// Core value owned by the render entrypoint, per the redesign note in
// SPEC_FULL.md §9 — while keeping every method's signature close to
// its original counterpart so the table in §6.1 maps one-for-one onto
// this package.
package hostapi

import (
	"fmt"
	"io"
	"sync"

	"supersonic/core"
	"supersonic/engine"
	"supersonic/layout"
	"supersonic/metrics"
)

// EngineFactory constructs the engine collaborator an embedding host
// supplies. This module defines no concrete engine (§1's scope
// boundary); Init receives one from its caller the same way the
// original's scsynth World is constructed by its own embedding code.
type EngineFactory func(opts engine.Options, sink engine.ReplySink, observer engine.NodeObserver) engine.Engine

// Host adapts a core.Core to the entrypoint surface a host process
// drives once per quantum. Not safe for concurrent calls to the
// render-path methods (ProcessAudio, ClearScheduler) from more than
// one goroutine — matching Core's own single-render-thread contract —
// but Init is guarded so a second call is a safe no-op rather than a
// double-construction.
type Host struct {
	mu          sync.Mutex
	c           *core.Core
	initialized bool
}

// New returns an uninitialized Host.
func New() *Host {
	return &Host{}
}

// Init implements init_memory: idempotent construction from a sample
// rate and the sixteen engine-option u32 slots (§6.1), read here as a
// typed engine.Options rather than a raw offset scan. A second call is
// a no-op, matching the original's guarded memory_initialized check.
func (h *Host) Init(sampleRate float64, opts engine.Options, factory EngineFactory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return
	}

	opts.SampleRate = uint32(sampleRate)
	if err := validateOptions(opts); err != nil {
		fmt.Println("[init_memory] invalid options:", err)
	}

	h.c = core.NewTransport(core.Options{
		InCapacity:     layout.InBufferSize,
		OutCapacity:    layout.OutBufferSize,
		DebugCapacity:  layout.DebugBufferSize,
		SampleRate:     opts.SampleRate,
		OutputChannels: opts.OutputChannels,
		InputChannels:  opts.InputChannels,
		CaptureFrames:  layout.CaptureFrames,
	})

	eng := factory(opts, h.c, h.c)
	if err := h.c.Bind(eng); err != nil {
		fmt.Println("[init_memory] engine construction failed:", err)
	}

	h.initialized = true
}

// validateOptions checks the two fixed fields §6.1 names: buffer
// length must equal the quantum size (0 is accepted as unset), and the
// realtime/memory-locking flags — meaningless in a managed-runtime
// port — must both be false.
func validateOptions(opts engine.Options) error {
	if opts.BufferLength != 0 && opts.BufferLength != core.FramesPerQuantum {
		return fmt.Errorf("buffer_length %d != %d", opts.BufferLength, core.FramesPerQuantum)
	}
	if opts.Realtime || opts.MemoryLocking {
		return fmt.Errorf("realtime/memory_locking flags must be false")
	}
	return nil
}

// GetRingBufferBase implements get_ring_buffer_base. This port keeps
// each ring as its own slice rather than one flat shared arena; the
// address returned is the inbound ring's, the one a control-side
// writer most often needs for one-time introspection.
func (h *Host) GetRingBufferBase() uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return 0
	}
	return h.c.InRing().BasePointer()
}

// GetBufferLayout implements get_buffer_layout.
func (h *Host) GetBufferLayout() layout.Descriptor {
	return layout.Get()
}

// SetTimeOffset implements set_time_offset.
func (h *Host) SetTimeOffset(seconds float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return
	}
	h.c.TimeBase().SetOffset(seconds)
}

// GetTimeOffset implements get_time_offset.
func (h *Host) GetTimeOffset() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return 0
	}
	return h.c.TimeBase().Offset()
}

// ProcessAudio implements process_audio. activeOutChannels and
// activeInChannels are accepted for signature fidelity with §6.1's
// table; this port's staging buffers are sized once at Init time from
// the engine options, so a mismatch is logged rather than causing a
// reallocation mid-render.
func (h *Host) ProcessAudio(currentTime float64, activeOutChannels, activeInChannels uint32) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return false
	}
	if activeOutChannels > uint32(len(h.c.OutputBus()))/core.FramesPerQuantum {
		fmt.Println("[process_audio] active_out_channels exceeds the configured bus width")
	}
	if activeInChannels > uint32(len(h.c.InputBus()))/core.FramesPerQuantum {
		fmt.Println("[process_audio] active_in_channels exceeds the configured bus width")
	}
	return h.c.ProcessAudio(currentTime)
}

// ClearScheduler implements clear_scheduler.
func (h *Host) ClearScheduler() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return
	}
	h.c.ClearScheduler()
}

// GetAudioOutputBus implements get_audio_output_bus.
func (h *Host) GetAudioOutputBus() []float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return nil
	}
	return h.c.OutputBus()
}

// GetAudioInputBus implements get_audio_input_bus: the host writes
// input samples here before the next ProcessAudio call.
func (h *Host) GetAudioInputBus() []float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return nil
	}
	return h.c.InputBus()
}

// GetAudioBufferSamples implements get_audio_buffer_samples.
func (h *Host) GetAudioBufferSamples() int {
	return core.FramesPerQuantum
}

// SubmitFrame writes a command-protocol payload into the inbound ring,
// the control side's half of the transport this package otherwise only
// exposes through the render-thread-facing methods above. Returns false
// if the ring has no room.
func (h *Host) SubmitFrame(payload []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return false
	}
	return h.c.InRing().Write(payload)
}

// WorkletDebug implements worklet_debug: a pre-formatted line (the
// variadic C formatter's Go equivalent is the caller's fmt.Sprintf)
// published to the debug ring.
func (h *Host) WorkletDebug(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return
	}
	h.c.Log(line)
}

// WorkletDebugRaw implements worklet_debug_raw: a pre-formatted line
// the caller has already assembled, published without reformatting.
func (h *Host) WorkletDebugRaw(line []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return
	}
	h.c.Log(string(line))
}

// Status returns the current render-thread status word, for a host
// that wants to poll rather than react to individual counters.
func (h *Host) Status() uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return 0
	}
	return h.c.Flags().Load()
}

// ClearStatus implements the control thread's side of the status
// word's contract: only it ever clears bits the render thread set.
func (h *Host) ClearStatus(bits uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return
	}
	h.c.Flags().Clear(bits)
}

// Metrics returns a read-only view over the metrics block, backing
// the §6.1 "get_* metric getters" row without enumerating one method
// per counter.
func (h *Host) Metrics() metrics.ReaderView {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return metrics.ReaderView{}
	}
	return metrics.NewReaderView(h.c.Metrics())
}

// MirrorSnapshot writes the current node-mirror contents as JSON to w,
// for external diagnostic tooling (§11.1).
func (h *Host) MirrorSnapshot(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.c == nil {
		return nil
	}
	return h.c.Mirror().DumpJSON(w)
}
