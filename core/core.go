// core.go — the quantum dispatcher.
//
// Core ties together the ring transport, the bundle scheduler, the
// node-tree mirror, the time base, and the metrics block behind the
// single render entrypoint a host audio callback invokes once per
// quantum. Grounded end to end on the original engine's
// process_audio: drain, classify, schedule, execute due bundles,
// synthesize, copy audio out.
package core

import (
	"math"

	"supersonic/control"
	"supersonic/engine"
	"supersonic/frame"
	"supersonic/metrics"
	"supersonic/nodetree"
	"supersonic/ring"
	"supersonic/scheduler"
	"supersonic/timebase"
)

// FramesPerQuantum is the fixed audio callback block size. The engine
// options' buffer_length field must equal this.
const FramesPerQuantum = 128

// MaxMessagesPerQuantum bounds the inbound drain loop so a burst of
// traffic can never blow the render deadline. Named rather than
// inlined so a harness can override it through Options.
const MaxMessagesPerQuantum = 32

// Options configures a Core at construction time.
type Options struct {
	InCapacity, OutCapacity, DebugCapacity uint32
	SampleRate                             uint32
	OutputChannels                         uint32
	InputChannels                          uint32 // 0 disables the input staging buffer
	CaptureFrames                          uint32 // 0 disables capture
	DrainLimit                             uint32 // 0 defaults to MaxMessagesPerQuantum
}

// Core is not safe for concurrent use by more than one caller: the
// render thread is ProcessAudio's only caller, matching the single-
// threaded-cooperative model this package implements.
type Core struct {
	in     *ring.Ring
	inRd   *ring.Reader
	out    *ring.Ring
	dbg    *ring.Ring
	sched  *scheduler.Scheduler
	mirror *nodetree.Tree
	met    *metrics.Block
	tb     *timebase.Base
	flags  *control.Flags
	eng    engine.Engine

	drainLimit     uint32
	sampleRate     uint32
	outputChannels uint32
	inputChannels  uint32
	lastTime       timebase.Time

	output  []float32 // staging buffer, channel-major, FramesPerQuantum per channel
	input   []float32 // staging buffer the host writes into before ProcessAudio
	scratch []byte    // reused drain-loop payload buffer, sized once at construction
	logLine []byte    // reused Log() scratch buffer, sized once at construction
	capture []float32 // interleaved capture ring, nil if disabled
	capHead uint32
	capCap  uint32
	capOn   bool
}

// NewTransport constructs a Core's rings, scheduler, mirror, metrics,
// and time base, without an engine bound yet. The engine is an
// external collaborator that itself needs a ReplySink and a
// NodeObserver on construction — both of which this Core provides —
// so construction is necessarily two-phase: build the transport, hand
// it to the engine's own constructor as engine.ReplySink/NodeObserver,
// then Bind the resulting engine.Engine back onto this Core.
func NewTransport(opts Options) *Core {
	limit := opts.DrainLimit
	if limit == 0 {
		limit = MaxMessagesPerQuantum
	}

	c := &Core{
		in:             ring.New(opts.InCapacity),
		out:            ring.New(opts.OutCapacity),
		dbg:            ring.New(opts.DebugCapacity),
		sched:          scheduler.New(),
		mirror:         nodetree.New(),
		met:            metrics.New(),
		tb:             timebase.NewBase(),
		flags:          &control.Flags{},
		drainLimit:     limit,
		sampleRate:     opts.SampleRate,
		outputChannels: opts.OutputChannels,
		inputChannels:  opts.InputChannels,
		output:         make([]float32, opts.OutputChannels*FramesPerQuantum),
		input:          make([]float32, opts.InputChannels*FramesPerQuantum),
		scratch:        make([]byte, frame.MaxPayload),
		logLine:        make([]byte, frame.MaxPayload),
	}
	c.inRd = ring.NewReader(c.in)
	c.inRd.BindCounters(&c.met.MessagesDropped, &c.met.InSequenceGaps)
	c.inRd.BindFlags(c.flags)
	c.tb.BindNonmonotonicCounter(&c.met.TimeNonmonotonicCount)

	if opts.CaptureFrames > 0 {
		c.capture = make([]float32, opts.CaptureFrames*opts.OutputChannels)
		c.capCap = opts.CaptureFrames
		c.capOn = true
	}
	return c
}

// Bind attaches the engine collaborator. Must be called before the
// first ProcessAudio call. The returned error is for the host-side
// caller's own setup-time logging; it never reaches the render
// entrypoint itself, which only ever sees the EngineError status bit.
func (c *Core) Bind(eng engine.Engine) error {
	c.eng = eng
	if !eng.Ready() {
		c.flags.Set(control.EngineError)
		return ErrEngineNotReady
	}
	return nil
}

// Metrics returns the render-thread-owned counter block, for the host
// API's metric getters and for a control-side ReaderView.
func (c *Core) Metrics() *metrics.Block { return c.met }

// Mirror returns the node-tree mirror, for diagnostic snapshotting.
func (c *Core) Mirror() *nodetree.Tree { return c.mirror }

// Flags returns the shared status word.
func (c *Core) Flags() *control.Flags { return c.flags }

// TimeBase returns the time-base components, so the host API's
// set_time_offset/get_time_offset can reach them.
func (c *Core) TimeBase() *timebase.Base { return c.tb }

// InRing, OutRing, DebugRing expose the three transport rings for the
// host API's buffer-base introspection and for a control-side writer
// to hand frames to In directly.
func (c *Core) InRing() *ring.Ring    { return c.in }
func (c *Core) OutRing() *ring.Ring   { return c.out }
func (c *Core) DebugRing() *ring.Ring { return c.dbg }

// OutputBus returns the staging buffer the most recent ProcessAudio
// call copied engine output into.
func (c *Core) OutputBus() []float32 { return c.output }

// InputBus returns the staging buffer the host writes input samples
// into before calling ProcessAudio.
func (c *Core) InputBus() []float32 { return c.input }

// ClearScheduler implements clear_scheduler: empties the scheduler
// pool and resets the inbound reader's remembered sequence so a
// subsequent drain does not register a false gap against traffic that
// predates the purge.
func (c *Core) ClearScheduler() {
	c.sched.Clear()
	c.inRd.Reset()
}

// ProcessAudio is the render entrypoint: one call per audio quantum.
// currentTimeSeconds is the host's wall-clock read for this quantum's
// start. Returns false (render becomes a permanent no-op) only when
// the engine failed to construct.
func (c *Core) ProcessAudio(currentTimeSeconds float64) bool {
	if !c.eng.Ready() {
		c.flags.Set(control.EngineError)
		return false
	}

	c.met.ProcessCount.Add(1)
	c.drainInbound()
	c.eng.SetInputBus(c.input)

	tNow := c.tb.Now(currentTimeSeconds, c.lastTime)
	c.lastTime = tNow
	quantumSpan := timebase.Advance(FramesPerQuantum, c.sampleRate)
	tEnd := tNow + quantumSpan

	samplesPerUnit := float64(c.sampleRate)
	for c.sched.NextTime() <= uint64(tEnd) {
		bundle := c.sched.Remove()
		schedTime := timebase.Time(bundle.TimeTag)

		diff := (schedTime.Seconds()-tNow.Seconds())*samplesPerUnit + 0.5
		whole := math.Floor(diff)
		sampleOffset := int(whole)
		if sampleOffset < 0 {
			sampleOffset = 0
		}
		if sampleOffset > FramesPerQuantum-1 {
			sampleOffset = FramesPerQuantum - 1
		}
		subsample := diff - whole

		c.eng.SetSampleOffset(sampleOffset, subsample)
		c.eng.DispatchBundle(bundle.Data[:bundle.Size], bundle.ReplyAddr)

		if schedTime < tNow {
			lateMs := uint32((tNow.Seconds() - schedTime.Seconds()) * 1000)
			c.met.RecordLateness(lateMs, c.met.ProcessCount.Load())
		}

		c.sched.Release(bundle)
	}
	c.eng.SetSampleOffset(0, 0)

	c.eng.RunQuantum()

	c.met.SchedulerQueueDepth.Store(c.sched.Depth())
	c.met.SchedulerQueueMax.Store(c.sched.Peak())
	c.met.SchedulerQueueDropped.Store(c.sched.Dropped())

	metrics.RecordUsed(&c.met.InUsed, &c.met.InPeak, c.in.UsedBytes())
	metrics.RecordUsed(&c.met.OutUsed, &c.met.OutPeak, c.out.UsedBytes())
	metrics.RecordUsed(&c.met.DebugUsed, &c.met.DebugPeak, c.dbg.UsedBytes())

	c.copyOutput()
	if c.capOn {
		c.writeCapture()
	}

	return true
}

func (c *Core) drainInbound() {
	for i := uint32(0); i < c.drainLimit; i++ {
		f, ok := c.inRd.Next(c.scratch)
		if !ok {
			return
		}

		if !frame.IsBundle(f.Payload) {
			c.inRd.Commit(f)
			c.eng.DispatchMessage(f.Payload, scheduler.ReplyAddr{})
			c.met.MessagesProcessed.Add(1)
			c.met.InBytesTotal.Add(uint32(len(f.Payload)))
			continue
		}

		tag := frame.TimeTag(f.Payload)
		if tag <= 1 {
			c.inRd.Commit(f)
			c.eng.DispatchBundle(f.Payload, scheduler.ReplyAddr{})
			c.met.MessagesProcessed.Add(1)
			c.met.InBytesTotal.Add(uint32(len(f.Payload)))
			continue
		}

		if len(f.Payload) > scheduler.SlotSize {
			// Never schedulable regardless of pool occupancy: commit and
			// count it like any other oversized frame rather than
			// backpressuring on a condition that can never clear.
			c.inRd.Commit(f)
			c.sched.CountDrop()
			continue
		}

		if !c.sched.Add(tag, f.Payload, scheduler.ReplyAddr{}) {
			return // backpressure: leave this frame uncommitted for the next quantum
		}
		c.inRd.Commit(f)
		c.met.MessagesProcessed.Add(1)
		c.met.InBytesTotal.Add(uint32(len(f.Payload)))
	}
}

func (c *Core) copyOutput() {
	copy(c.output, c.eng.OutputBus())
}

func (c *Core) writeCapture() {
	if c.capHead+FramesPerQuantum > c.capCap {
		c.capOn = false
		return
	}
	channels := c.outputChannels
	for ch := uint32(0); ch < channels; ch++ {
		srcBase := ch * FramesPerQuantum
		for frameIdx := uint32(0); frameIdx < FramesPerQuantum; frameIdx++ {
			dst := (c.capHead+frameIdx)*channels + ch
			c.capture[dst] = c.output[srcBase+frameIdx]
		}
	}
	c.capHead += FramesPerQuantum
}
