// ════════════════════════════════════════════════════════════════════
// Core Transport Benchmark Harness - Main Entry Point
// ────────────────────────────────────────────────────────────────────
// Component: Test Fixture / Standalone Render-Loop Driver
//
// Description:
//   Drives a hostapi.Host through synthetic load without a real audio
//   callback or a real synthesis engine: a producer goroutine writes
//   command-protocol frames into the inbound ring at a configurable
//   rate while the main goroutine calls ProcessAudio in a tight loop,
//   standing in for the host audio thread. Bootstrap → Engine
//   Construction → Render Loop.
// ════════════════════════════════════════════════════════════════════
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"runtime"
	rtdebug "runtime/debug"
	"sync/atomic"
	"time"

	"supersonic/core"
	"supersonic/engine"
	"supersonic/hostapi"
	"supersonic/scheduler"
)

func dropMessage(prefix, message string) {
	fmt.Fprintln(os.Stderr, prefix+": "+message)
}

func dropError(prefix string, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, prefix+": "+err.Error())
	}
}

// silentEngine is a do-nothing engine.Engine used only to exercise the
// transport, scheduler, and node mirror under load: the real synthesis
// engine is an external collaborator this module does not implement.
type silentEngine struct {
	sink     engine.ReplySink
	observer engine.NodeObserver
	output   []float32
	nextNode int32
}

func newSilentEngine(opts engine.Options, sink engine.ReplySink, observer engine.NodeObserver) engine.Engine {
	return &silentEngine{
		sink:     sink,
		observer: observer,
		output:   make([]float32, opts.OutputChannels*core.FramesPerQuantum),
	}
}

func (e *silentEngine) DispatchMessage(payload []byte, reply scheduler.ReplyAddr) {
	e.nextNode++
	e.observer.NodeAdded(engine.NodeEvent{
		ID:            e.nextNode,
		ParentID:      -1,
		PrevSiblingID: -1,
		NextSiblingID: -1,
		HeadChildID:   -1,
		DefName:       "corebench",
	})
	e.sink.Reply([]byte("/done"), reply)
}

func (e *silentEngine) DispatchBundle(payload []byte, reply scheduler.ReplyAddr) {
	e.DispatchMessage(payload, reply)
}

func (e *silentEngine) SetSampleOffset(sampleOffset int, subsampleOffset float64) {}
func (e *silentEngine) SetInputBus(samples []float32)                            {}
func (e *silentEngine) RunQuantum()                                              {}
func (e *silentEngine) OutputBus() []float32                                     { return e.output }
func (e *silentEngine) Ready() bool                                              { return true }

func main() {
	sampleRate := flag.Float64("rate", 48000, "sample rate in Hz")
	outputChannels := flag.Uint("out-channels", 2, "output channel count")
	quanta := flag.Int("quanta", 100000, "number of render quanta to run")
	framesPerSec := flag.Int("producer-rate", 2000, "synthetic command frames submitted per second")
	pin := flag.Int("pin-cpu", -1, "pin the producer goroutine to this logical CPU (-1 disables)")
	reportEvery := flag.Int("report-every", 10000, "print a metrics/mirror snapshot every N quanta")
	flag.Parse()

	dropMessage("INIT", "constructing host")
	host := hostapi.New()
	host.Init(*sampleRate, engine.Options{
		OutputChannels: uint32(*outputChannels),
		BufferLength:   core.FramesPerQuantum,
	}, newSilentEngine)
	dropMessage("READY", "host initialized")

	var stop atomic.Bool
	go runProducer(host, *framesPerSec, *pin, &stop)

	rtdebug.SetGCPercent(-1)
	runtime.LockOSThread()

	dropMessage("RENDER", fmt.Sprintf("running %d quanta", *quanta))
	start := time.Now()
	quantumSeconds := float64(core.FramesPerQuantum) / *sampleRate
	t := 0.0
	for i := 0; i < *quanta; i++ {
		host.ProcessAudio(t, uint32(*outputChannels), 0)
		t += quantumSeconds

		if *reportEvery > 0 && i%*reportEvery == 0 {
			reportSnapshot(host, i)
		}
	}
	stop.Store(true)

	elapsed := time.Since(start)
	dropMessage("DONE", fmt.Sprintf("%d quanta in %s", *quanta, elapsed))
	reportSnapshot(host, *quanta)
}

// runProducer writes synthetic bundle frames into the host's inbound
// ring at framesPerSec, optionally pinned to a single logical CPU.
func runProducer(host *hostapi.Host, framesPerSec, pin int, stop *atomic.Bool) {
	if pin >= 0 {
		runtime.LockOSThread()
		pinCurrentThread(pin)
	}
	if framesPerSec <= 0 {
		return
	}
	interval := time.Second / time.Duration(framesPerSec)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	for !stop.Load() {
		<-ticker.C
		seq++
		if !host.SubmitFrame(bundleFrame(0, seq)) {
			dropError("PRODUCER", fmt.Errorf("inbound ring full at frame %d", seq))
		}
	}
}

// bundleFrame builds a bundle payload with the given time tag (runProducer
// passes 0, an immediate bundle) carrying seq as an 8-byte tail,
// matching the command-protocol layout frame.IsBundle
// classifies: an 8-byte "#bundle\x00" marker followed by an 8-byte
// big-endian time tag.
func bundleFrame(timeTag, seq uint64) []byte {
	b := make([]byte, 24)
	copy(b[:8], "#bundle\x00")
	binary.BigEndian.PutUint64(b[8:16], timeTag)
	binary.BigEndian.PutUint64(b[16:24], seq)
	return b
}

func reportSnapshot(host *hostapi.Host, quantum int) {
	m := host.Metrics()
	dropMessage("METRICS", fmt.Sprintf(
		"quantum=%d processed=%d dropped=%d sched_depth=%d sched_dropped=%d status=0x%x",
		quantum, m.MessagesProcessed(), m.MessagesDropped(), m.SchedulerQueueDepth(), m.SchedulerQueueDropped(), host.Status()))

	if err := host.MirrorSnapshot(os.Stdout); err != nil {
		dropError("MIRROR_SNAPSHOT", err)
		return
	}
	fmt.Fprintln(os.Stdout)
}
