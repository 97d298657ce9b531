// nodetree.go — flat-array mirror of the engine's node hierarchy.
//
// The mirror is lossy by design: when the entry array is full, add
// increments dropped_count and otherwise does nothing, leaving the
// engine's own tree unaffected. Slot indices are stable for the
// lifetime of an entry — removal never reshuffles the array — so a
// hash index mapping node id to slot is the only structure that needs
// rebalancing.
package nodetree

import "sync/atomic"

const (
	// MaxNodes bounds the entry array, matching the original mirror's
	// NODE_TREE_MAX_NODES.
	MaxNodes = 1024

	// DefNameSize is the fixed width of the null-terminated synthdef
	// name field, matching the original's 32-byte NodeEntry field.
	DefNameSize = 32

	// hashBuckets is sized well past MaxNodes so linear probing stays
	// short even near capacity.
	hashBuckets = 2048
)

const emptyID = -1

// Entry is one 56-byte mirror slot. A slot with ID == -1 is empty and
// reusable.
type Entry struct {
	ID            int32
	ParentID      int32
	IsGroup       bool
	PrevSiblingID int32
	NextSiblingID int32
	HeadChildID   int32
	DefName       [DefNameSize]byte
}

// Header mirrors NodeTreeHeader: the structural summary a poller
// checks before deciding whether to walk the full entry array. Version
// is atomic, bumped with release ordering on every structural change,
// so an external poller can do an optimistic read-retry: read version,
// read the entries it cares about, read version again, and discard the
// read if the two don't match.
type Header struct {
	NodeCount    uint32
	Version      atomic.Uint32
	DroppedCount uint32
}

// Tree owns the entry array, free list, and hash index. Not safe for
// concurrent use — the engine's node-lifecycle callback, which runs on
// the render thread, is its only caller.
type Tree struct {
	Header  Header
	entries [MaxNodes]Entry
	free    []int32 // stack of empty slot indices

	hashKeys [hashBuckets]int32
	hashSlot [hashBuckets]int32
	occupied [hashBuckets]bool
}

// New returns an empty mirror with every slot free and the hash index
// empty.
func New() *Tree {
	t := &Tree{free: make([]int32, MaxNodes)}
	for i := range t.entries {
		t.entries[i].ID = emptyID
		t.free[i] = int32(MaxNodes - 1 - i)
	}
	return t
}

// AddNode is the node-lifecycle callback's add parameter set: just the
// fields the mirror needs, not the engine's own Node type.
type AddNode struct {
	ID            int32
	ParentID      int32
	IsGroup       bool
	PrevSiblingID int32
	NextSiblingID int32
	HeadChildID   int32 // only meaningful when IsGroup
	DefName       string
}

// Add inserts n into the mirror. If the free list is exhausted it
// increments DroppedCount and returns — the mirror is lossy by design,
// the engine's own tree is unaffected.
func (t *Tree) Add(n AddNode) {
	slot := t.popFree()
	if slot < 0 {
		t.Header.DroppedCount++
		return
	}

	e := &t.entries[slot]
	e.ID = n.ID
	e.ParentID = n.ParentID
	e.IsGroup = n.IsGroup
	e.PrevSiblingID = n.PrevSiblingID
	e.NextSiblingID = n.NextSiblingID
	if n.IsGroup {
		e.HeadChildID = n.HeadChildID
	} else {
		e.HeadChildID = emptyID
	}
	setDefName(e, n.DefName)

	t.hashInsert(n.ID, slot)

	if p, ok := t.find(n.PrevSiblingID); ok {
		t.entries[p].NextSiblingID = n.ID
	}
	if nx, ok := t.find(n.NextSiblingID); ok {
		t.entries[nx].PrevSiblingID = n.ID
	}
	if n.PrevSiblingID == emptyID {
		if p, ok := t.find(n.ParentID); ok {
			t.entries[p].HeadChildID = n.ID
		}
	}

	t.Header.NodeCount++
	t.Header.Version.Add(1)
}

// Remove deletes id from the mirror, patching the sibling chain and
// parent head pointer around the hole it leaves. If id was never
// mirrored (dropped on overflow), decrements DroppedCount instead.
func (t *Tree) Remove(id int32) {
	slot, ok := t.find(id)
	if !ok {
		if t.Header.DroppedCount > 0 {
			t.Header.DroppedCount--
		}
		return
	}
	e := t.entries[slot]

	if p, ok := t.find(e.PrevSiblingID); ok {
		t.entries[p].NextSiblingID = e.NextSiblingID
	}
	if nx, ok := t.find(e.NextSiblingID); ok {
		t.entries[nx].PrevSiblingID = e.PrevSiblingID
	}
	if e.ParentID != emptyID && e.PrevSiblingID == emptyID {
		if p, ok := t.find(e.ParentID); ok {
			t.entries[p].HeadChildID = e.NextSiblingID
		}
	}

	t.entries[slot].ID = emptyID
	t.hashRemove(id)
	t.free = append(t.free, slot)

	if t.Header.NodeCount > 0 {
		t.Header.NodeCount--
	}
	t.Header.Version.Add(1)
}

// MoveNode carries the same fields as AddNode; Move re-derives the old
// position from the mirror itself.
type MoveNode = AddNode

// Move repositions an already-mirrored node: patches its old sibling
// chain and parent head closed, writes the new position, and patches
// the new sibling chain and parent head open. If id is not currently
// mirrored, behaves like Add.
func (t *Tree) Move(n MoveNode) {
	slot, ok := t.find(n.ID)
	if !ok {
		t.Add(n)
		return
	}
	e := &t.entries[slot]
	oldPrev, oldNext, oldParent := e.PrevSiblingID, e.NextSiblingID, e.ParentID

	e.ParentID = n.ParentID
	e.PrevSiblingID = n.PrevSiblingID
	e.NextSiblingID = n.NextSiblingID
	if n.IsGroup {
		e.HeadChildID = n.HeadChildID
	}

	if p, ok := t.find(oldPrev); ok {
		t.entries[p].NextSiblingID = oldNext
	}
	if nx, ok := t.find(oldNext); ok {
		t.entries[nx].PrevSiblingID = oldPrev
	}
	if oldParent != emptyID && oldPrev == emptyID {
		if p, ok := t.find(oldParent); ok && t.entries[p].HeadChildID == n.ID {
			t.entries[p].HeadChildID = oldNext
		}
	}

	if p, ok := t.find(n.PrevSiblingID); ok {
		t.entries[p].NextSiblingID = n.ID
	}
	if nx, ok := t.find(n.NextSiblingID); ok {
		t.entries[nx].PrevSiblingID = n.ID
	}
	if n.PrevSiblingID == emptyID {
		if p, ok := t.find(n.ParentID); ok {
			t.entries[p].HeadChildID = n.ID
		}
	}

	t.Header.Version.Add(1)
}

// Get returns a copy of the mirrored entry for id, if present.
func (t *Tree) Get(id int32) (Entry, bool) {
	slot, ok := t.find(id)
	if !ok {
		return Entry{}, false
	}
	return t.entries[slot], true
}

func (t *Tree) find(id int32) (int32, bool) {
	if id == emptyID {
		return 0, false
	}
	return t.hashFind(id)
}

func (t *Tree) popFree() int32 {
	n := len(t.free)
	if n == 0 {
		return -1
	}
	slot := t.free[n-1]
	t.free = t.free[:n-1]
	return slot
}

func setDefName(e *Entry, name string) {
	n := copy(e.DefName[:DefNameSize-1], name)
	for i := n; i < DefNameSize; i++ {
		e.DefName[i] = 0
	}
}
