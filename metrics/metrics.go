// metrics.go — the render thread's side of the shared metrics block.
//
// Block groups every counter the core itself writes: process tick,
// message throughput, scheduler occupancy, per-ring byte accounting,
// sequence-gap tallies, and lateness statistics. A disjoint set of
// reader-owned counters lives alongside these (see ReaderView) so a
// single region is the complete accounting surface for the transport,
// matching the original engine's PerformanceMetrics, even though the
// render thread never writes the reader-owned slots.
package metrics

import "sync/atomic"

// Block holds every atomic counter the render thread owns.
type Block struct {
	ProcessCount          atomic.Uint32
	MessagesProcessed     atomic.Uint32
	MessagesDropped       atomic.Uint32
	SchedulerQueueDepth   atomic.Uint32
	SchedulerQueueMax     atomic.Uint32
	SchedulerQueueDropped atomic.Uint32

	InUsed, InPeak       atomic.Uint32
	OutUsed, OutPeak     atomic.Uint32
	DebugUsed, DebugPeak atomic.Uint32

	InBytesTotal    atomic.Uint32
	OutBytesTotal   atomic.Uint32
	DebugBytesTotal atomic.Uint32

	InSequenceGaps atomic.Uint32

	SchedulerLates      atomic.Uint32
	SchedulerMaxLateMs  atomic.Uint32
	SchedulerLastLateMs atomic.Uint32
	SchedulerLastLateAt atomic.Uint32

	TimeNonmonotonicCount atomic.Uint32

	readers ReaderBlock
}

// New returns a zeroed metrics block, as if freshly allocated by
// init_memory.
func New() *Block {
	return &Block{}
}

// Readers returns the disjoint reader-owned counter block. The render
// thread reserves and zeroes these slots but never writes through
// this accessor itself.
func (b *Block) Readers() *ReaderBlock {
	return &b.readers
}

// ReaderBlock holds the counters owned by the two passive control-side
// pollers that drain OUT and DBG from outside the render thread. The
// core never increments these; it only reserves the slots so a single
// MET region remains the complete accounting surface.
type ReaderBlock struct {
	OutMessagesRead   atomic.Uint32
	OutBytesRead      atomic.Uint32
	OutSequenceGaps   atomic.Uint32
	DebugLinesRead    atomic.Uint32
	DebugBytesRead    atomic.Uint32
	DebugSequenceGaps atomic.Uint32
}

// RecordUsed updates a ring's instantaneous used/peak pair.
func RecordUsed(used, peak *atomic.Uint32, n uint32) {
	used.Store(n)
	for {
		old := peak.Load()
		if n <= old || peak.CompareAndSwap(old, n) {
			return
		}
	}
}

// RecordLateness folds a late-dispatch observation into the lateness
// statistics: count, running max, and the magnitude/tick of the most
// recent occurrence.
func (b *Block) RecordLateness(lateMs, tick uint32) {
	b.SchedulerLates.Add(1)
	for {
		old := b.SchedulerMaxLateMs.Load()
		if lateMs <= old || b.SchedulerMaxLateMs.CompareAndSwap(old, lateMs) {
			break
		}
	}
	b.SchedulerLastLateMs.Store(lateMs)
	b.SchedulerLastLateAt.Store(tick)
}

// ReaderView exposes read-only typed accessors over a Block's
// render-thread-owned counters, granting no write access to them even
// though the underlying memory is shared. The only writable part it
// hands out is the reader-owned block (OutReaders).
type ReaderView struct {
	b *Block
}

// NewReaderView wraps b for read-only access by a control-side consumer.
func NewReaderView(b *Block) ReaderView {
	return ReaderView{b: b}
}

func (v ReaderView) ProcessCount() uint32          { return v.b.ProcessCount.Load() }
func (v ReaderView) MessagesProcessed() uint32     { return v.b.MessagesProcessed.Load() }
func (v ReaderView) MessagesDropped() uint32       { return v.b.MessagesDropped.Load() }
func (v ReaderView) SchedulerQueueDepth() uint32   { return v.b.SchedulerQueueDepth.Load() }
func (v ReaderView) SchedulerQueueMax() uint32     { return v.b.SchedulerQueueMax.Load() }
func (v ReaderView) SchedulerQueueDropped() uint32 { return v.b.SchedulerQueueDropped.Load() }
func (v ReaderView) InBytesTotal() uint32          { return v.b.InBytesTotal.Load() }
func (v ReaderView) OutBytesTotal() uint32         { return v.b.OutBytesTotal.Load() }
func (v ReaderView) DebugBytesTotal() uint32       { return v.b.DebugBytesTotal.Load() }
func (v ReaderView) InSequenceGaps() uint32        { return v.b.InSequenceGaps.Load() }
func (v ReaderView) SchedulerLates() uint32        { return v.b.SchedulerLates.Load() }
func (v ReaderView) SchedulerMaxLateMs() uint32    { return v.b.SchedulerMaxLateMs.Load() }
func (v ReaderView) SchedulerLastLateMs() uint32   { return v.b.SchedulerLastLateMs.Load() }
func (v ReaderView) SchedulerLastLateAt() uint32   { return v.b.SchedulerLastLateAt.Load() }
func (v ReaderView) InUsed() uint32                { return v.b.InUsed.Load() }
func (v ReaderView) InPeak() uint32                { return v.b.InPeak.Load() }
func (v ReaderView) OutUsed() uint32               { return v.b.OutUsed.Load() }
func (v ReaderView) OutPeak() uint32               { return v.b.OutPeak.Load() }
func (v ReaderView) DebugUsed() uint32             { return v.b.DebugUsed.Load() }
func (v ReaderView) DebugPeak() uint32             { return v.b.DebugPeak.Load() }
func (v ReaderView) TimeNonmonotonicCount() uint32 { return v.b.TimeNonmonotonicCount.Load() }

// OutReaders returns the reader-owned counter block (both the
// out-reader and the debug-reader counters), writable by the
// control-side readers. It is the same memory Block.Readers returns.
func (v ReaderView) OutReaders() *ReaderBlock { return &v.b.readers }
