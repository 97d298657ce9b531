package core

import (
	"encoding/binary"
	"testing"

	"supersonic/control"
	"supersonic/engine"
	"supersonic/scheduler"
	"supersonic/timebase"
)

type fakeEngine struct {
	ready            bool
	messages         [][]byte
	bundles          [][]byte
	sampleOffsets    []int
	subsampleOffsets []float64
	quanta           int
	output           []float32
	lastInput        []float32
}

func (e *fakeEngine) DispatchMessage(payload []byte, reply scheduler.ReplyAddr) {
	e.messages = append(e.messages, append([]byte{}, payload...))
}

func (e *fakeEngine) DispatchBundle(payload []byte, reply scheduler.ReplyAddr) {
	e.bundles = append(e.bundles, append([]byte{}, payload...))
}

func (e *fakeEngine) SetSampleOffset(sampleOffset int, subsampleOffset float64) {
	e.sampleOffsets = append(e.sampleOffsets, sampleOffset)
	e.subsampleOffsets = append(e.subsampleOffsets, subsampleOffset)
}

func (e *fakeEngine) SetInputBus(samples []float32) { e.lastInput = samples }

func (e *fakeEngine) RunQuantum() { e.quanta++ }

func (e *fakeEngine) OutputBus() []float32 { return e.output }

func (e *fakeEngine) Ready() bool { return e.ready }

func newTestCore(eng *fakeEngine) *Core {
	c := NewTransport(Options{
		InCapacity:     4096,
		OutCapacity:    4096,
		DebugCapacity:  4096,
		SampleRate:     48000,
		OutputChannels: 2,
	})
	c.Bind(eng)
	return c
}

func writeFrame(t *testing.T, c *Core, payload []byte) {
	t.Helper()
	if !c.in.Write(payload) {
		t.Fatal("failed to write test frame into the inbound ring")
	}
}

func bundlePayload(timeTag uint64, tail []byte) []byte {
	b := make([]byte, 16+len(tail))
	copy(b[:8], "#bundle\x00")
	binary.BigEndian.PutUint64(b[8:16], timeTag)
	copy(b[16:], tail)
	return b
}

func TestProcessAudioReturnsFalseWhenEngineNotReady(t *testing.T) {
	eng := &fakeEngine{ready: false, output: make([]float32, 2*FramesPerQuantum)}
	c := newTestCore(eng)
	if c.ProcessAudio(0) {
		t.Fatal("expected a no-op render when the engine failed to construct")
	}
}

func TestProcessAudioDispatchesNonBundleMessageImmediately(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	c := newTestCore(eng)
	writeFrame(t, c, []byte("/s_new sine"))

	c.ProcessAudio(0)

	if len(eng.messages) != 1 || string(eng.messages[0]) != "/s_new sine" {
		t.Fatalf("expected the message dispatched immediately, got %v", eng.messages)
	}
	if eng.quanta != 1 {
		t.Fatalf("expected RunQuantum to be called once, got %d", eng.quanta)
	}
}

func TestProcessAudioDispatchesImmediateBundleInline(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	c := newTestCore(eng)
	writeFrame(t, c, bundlePayload(0, []byte("payload")))

	c.ProcessAudio(0)

	if len(eng.bundles) != 1 {
		t.Fatalf("expected one immediate bundle dispatch, got %d", len(eng.bundles))
	}
}

func TestProcessAudioSchedulesFutureBundleAndDispatchesWhenDue(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	c := newTestCore(eng)
	writeFrame(t, c, bundlePayload(uint64(timebase.FromSeconds(5)), []byte("future")))

	c.ProcessAudio(0)
	if len(eng.bundles) != 0 {
		t.Fatal("a far-future bundle should not dispatch on the first quantum")
	}
	if c.sched.Depth() != 1 {
		t.Fatalf("expected the bundle to be scheduled, depth=%d", c.sched.Depth())
	}

	c.ProcessAudio(10)
	if len(eng.bundles) != 1 {
		t.Fatalf("expected the scheduled bundle to dispatch once it's due, got %d", len(eng.bundles))
	}
}

func TestProcessAudioCopiesEngineOutputToStagingBuffer(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	eng.output[0] = 0.5
	c := newTestCore(eng)

	c.ProcessAudio(0)

	if c.OutputBus()[0] != 0.5 {
		t.Fatalf("got %v, want 0.5", c.OutputBus()[0])
	}
}

func TestProcessAudioAppliesBackpressureOnSchedulerFull(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	c := NewTransport(Options{
		InCapacity:     1 << 20,
		OutCapacity:    4096,
		DebugCapacity:  4096,
		SampleRate:     48000,
		OutputChannels: 2,
		DrainLimit:     scheduler.SlotCount + 1,
	})
	c.Bind(eng)

	future := uint64(timebase.FromSeconds(5))
	for i := 0; i < scheduler.SlotCount+1; i++ {
		writeFrame(t, c, bundlePayload(future+uint64(i), nil))
	}

	c.ProcessAudio(0)
	if c.flags.Has(control.BufferFull) {
		t.Fatal("BufferFull is reserved for the transport rings, not scheduler backpressure")
	}
	if c.met.SchedulerQueueDropped.Load() != 0 {
		t.Fatal("a backpressured frame is not dropped, and stays eligible for a later quantum")
	}
	if _, ok := c.inRd.Next(c.scratch); !ok {
		t.Fatal("expected a frame to remain uncommitted in the ring after backpressure")
	}
}

func TestProcessAudioDropsFutureBundleLargerThanSlotSizeInsteadOfStalling(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	c := newTestCore(eng)

	future := uint64(timebase.FromSeconds(5))
	oversize := bundlePayload(future, make([]byte, scheduler.SlotSize))
	writeFrame(t, c, oversize)
	writeFrame(t, c, bundlePayload(future+1, nil))

	c.ProcessAudio(0)

	if c.met.SchedulerQueueDropped.Load() != 1 {
		t.Fatalf("scheduler_queue_dropped: got %d, want 1", c.met.SchedulerQueueDropped.Load())
	}
	if _, ok := c.inRd.Next(c.scratch); ok {
		t.Fatal("expected both frames to have been drained: the oversize one dropped, the other scheduled")
	}
}

func TestReplyWritesToOutRing(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	c := newTestCore(eng)

	if !c.Reply([]byte("/done"), scheduler.ReplyAddr{}) {
		t.Fatal("Reply should succeed into an empty ring")
	}
	if c.met.OutBytesTotal.Load() != uint32(len("/done")) {
		t.Fatalf("OutBytesTotal: got %d, want %d", c.met.OutBytesTotal.Load(), len("/done"))
	}
}

func TestLogWritesNewlineTerminatedLineToDebugRing(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	c := newTestCore(eng)
	c.Log("hello")
	if c.met.DebugBytesTotal.Load() != uint32(len("hello\n")) {
		t.Fatalf("got %d, want %d", c.met.DebugBytesTotal.Load(), len("hello\n"))
	}
}

func TestClearSchedulerLeavesSchedulerEmpty(t *testing.T) {
	eng := &fakeEngine{ready: true, output: make([]float32, 2*FramesPerQuantum)}
	c := newTestCore(eng)
	writeFrame(t, c, []byte("a"))
	c.ProcessAudio(0)

	c.ClearScheduler()
	if c.sched.Depth() != 0 {
		t.Fatal("expected the scheduler to be emptied")
	}
}

var _ engine.Engine = (*fakeEngine)(nil)
