// scheduler.go — fixed-capacity bundle scheduler.
//
// A pool of SlotCount ScheduledBundle records holds payloads by value so
// nothing on the render path allocates. A short sorted array of
// QueueEntry values orders the pool by (time tag, stability), giving
// O(1) peek and an insert cost proportional to queue depth rather than
// pool size — fine at this capacity, where a heap would only add
// bookkeeping for no measurable win.
package scheduler

// SlotSize bounds a single scheduled bundle's embedded payload.
const SlotSize = 1024

// SlotCount is the number of bundles that can be outstanding at once.
const SlotCount = 512

// ReplyAddr is an opaque origin token carried with a scheduled bundle so
// a late dispatch still replies to whoever scheduled it. The core never
// parses it.
type ReplyAddr [16]byte

// ScheduledBundle is one pool slot. Data holds the bundle payload bytes
// (magic, time tag, and sub-messages); Size is the valid prefix length.
type ScheduledBundle struct {
	TimeTag   uint64
	Stability uint64
	ReplyAddr ReplyAddr
	Size      uint32
	InUse     bool
	slot      int16
	Data      [SlotSize]byte
}

// queueEntry is the sorted-array element: small enough that shifting it
// during insert or removal is cheap at SlotCount's scale.
type queueEntry struct {
	timeTag   uint64
	stability uint64
	slot      int16
}

// less orders entries by ascending time tag, then ascending stability —
// the tie-break that preserves FIFO order among same-instant bundles.
func (e queueEntry) less(o queueEntry) bool {
	if e.timeTag != o.timeTag {
		return e.timeTag < o.timeTag
	}
	return e.stability < o.stability
}

// Scheduler owns the slot pool and the sorted dispatch order. It is not
// safe for concurrent use: the render thread is its only caller.
type Scheduler struct {
	pool      [SlotCount]ScheduledBundle
	free      []int16 // stack of unused slot indices
	queue     []queueEntry
	stability uint64

	depth    uint32 // current queue size, exposed as scheduler_queue_depth
	peak     uint32 // scheduler_queue_max
	dropped  uint32 // scheduler_queue_dropped
}

// New returns an empty scheduler with every slot free.
func New() *Scheduler {
	s := &Scheduler{
		free:  make([]int16, SlotCount),
		queue: make([]queueEntry, 0, SlotCount),
	}
	for i := range s.free {
		s.free[i] = int16(SlotCount - 1 - i)
	}
	return s
}

// Add schedules payload for dispatch at timeTag. Returns false if the
// queue is at capacity, which the caller answers with backpressure, or
// if payload exceeds SlotSize, which can never succeed and which the
// caller drops and counts through CountDrop.
func (s *Scheduler) Add(timeTag uint64, payload []byte, reply ReplyAddr) bool {
	if len(s.queue) >= SlotCount || len(payload) > SlotSize {
		return false
	}
	idx := s.acquireSlot()
	if idx < 0 {
		return false
	}

	b := &s.pool[idx]
	b.TimeTag = timeTag
	b.Stability = s.stability
	s.stability++
	b.ReplyAddr = reply
	b.Size = uint32(copy(b.Data[:], payload))
	b.InUse = true
	b.slot = idx

	s.insert(queueEntry{timeTag: timeTag, stability: b.Stability, slot: idx})

	s.depth = uint32(len(s.queue))
	if s.depth > s.peak {
		s.peak = s.depth
	}
	return true
}

// NextTime returns the time tag of the earliest scheduled bundle, or
// math.MaxUint64 if the queue is empty.
func (s *Scheduler) NextTime() uint64 {
	if len(s.queue) == 0 {
		return ^uint64(0)
	}
	return s.queue[0].timeTag
}

// Remove pops the earliest-ordered bundle without releasing its slot;
// the caller must call Release once it has finished reading the
// returned pointer.
func (s *Scheduler) Remove() *ScheduledBundle {
	if len(s.queue) == 0 {
		return nil
	}
	head := s.queue[0]
	copy(s.queue, s.queue[1:])
	s.queue = s.queue[:len(s.queue)-1]
	s.depth = uint32(len(s.queue))
	return &s.pool[head.slot]
}

// Release returns bundle's slot to the free list. Must be called
// exactly once per bundle returned by Remove.
func (s *Scheduler) Release(bundle *ScheduledBundle) {
	bundle.InUse = false
	bundle.Size = 0
	s.free = append(s.free, bundle.slot)
}

// Clear empties the queue and frees every slot, resetting depth to 0.
// Does not reset the stability counter or the peak/dropped metrics.
func (s *Scheduler) Clear() {
	s.queue = s.queue[:0]
	s.free = s.free[:0]
	for i := range s.pool {
		s.pool[i].InUse = false
		s.pool[i].Size = 0
		s.free = append(s.free, int16(SlotCount-1-i))
	}
	s.depth = 0
}

// Depth, Peak and Dropped expose the scheduler's metrics-block fields.
func (s *Scheduler) Depth() uint32   { return s.depth }
func (s *Scheduler) Peak() uint32    { return s.peak }
func (s *Scheduler) Dropped() uint32 { return s.dropped }

// CountDrop increments scheduler_queue_dropped. Called by the quantum
// dispatcher for a bundle that can never be scheduled regardless of
// pool occupancy (payload larger than SlotSize) — never for ordinary
// pool-full backpressure, which leaves the frame uncommitted for a
// later quantum rather than actually discarding it.
func (s *Scheduler) CountDrop() { s.dropped++ }

func (s *Scheduler) acquireSlot() int16 {
	n := len(s.free)
	if n == 0 {
		return -1
	}
	idx := s.free[n-1]
	s.free = s.free[:n-1]
	return idx
}

// insert places e into the sorted queue by linear scan from the tail,
// shifting later entries up. The queue is short (bounded by SlotCount
// and, in practice, far smaller), so this beats a heap's bookkeeping.
func (s *Scheduler) insert(e queueEntry) {
	s.queue = append(s.queue, e)
	i := len(s.queue) - 1
	for i > 0 && e.less(s.queue[i-1]) {
		s.queue[i] = s.queue[i-1]
		i--
	}
	s.queue[i] = e
}
