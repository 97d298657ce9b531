package nodetree

import "testing"

func TestAddAndGet(t *testing.T) {
	tr := New()
	tr.Add(AddNode{ID: 1000, ParentID: 0, PrevSiblingID: emptyID, NextSiblingID: emptyID, DefName: "sine"})

	e, ok := tr.Get(1000)
	if !ok {
		t.Fatal("expected node 1000 to be mirrored")
	}
	if defNameString(&e) != "sine" {
		t.Fatalf("got %q, want %q", defNameString(&e), "sine")
	}
	if tr.Header.NodeCount != 1 {
		t.Fatalf("node_count: got %d, want 1", tr.Header.NodeCount)
	}
}

func TestMirrorLifecycleMatchesCountAndVersionInvariant(t *testing.T) {
	tr := New()
	tr.Add(AddNode{ID: 1000, ParentID: 0, PrevSiblingID: emptyID, NextSiblingID: emptyID, IsGroup: true, HeadChildID: emptyID})
	tr.Add(AddNode{ID: 1001, ParentID: 1000, PrevSiblingID: emptyID, NextSiblingID: emptyID})
	tr.Remove(1001)
	tr.Remove(1000)

	if tr.Header.NodeCount != 0 {
		t.Fatalf("node_count: got %d, want 0", tr.Header.NodeCount)
	}
	if tr.Header.Version.Load() < 4 {
		t.Fatalf("version: got %d, want >= 4", tr.Header.Version.Load())
	}
	if len(tr.free) != MaxNodes {
		t.Fatalf("free list: got %d entries, want %d", len(tr.free), MaxNodes)
	}
	for i := range tr.entries {
		if tr.entries[i].ID != emptyID {
			t.Fatalf("entry %d not cleared: id=%d", i, tr.entries[i].ID)
		}
	}
}

func TestAddPatchesSiblingChainAndParentHead(t *testing.T) {
	tr := New()
	tr.Add(AddNode{ID: 1, ParentID: 0, IsGroup: true, PrevSiblingID: emptyID, NextSiblingID: emptyID, HeadChildID: emptyID})
	tr.Add(AddNode{ID: 2, ParentID: 1, PrevSiblingID: emptyID, NextSiblingID: emptyID})
	tr.Add(AddNode{ID: 3, ParentID: 1, PrevSiblingID: 2, NextSiblingID: emptyID})

	parent, _ := tr.Get(1)
	if parent.HeadChildID != 2 {
		t.Fatalf("parent head: got %d, want 2", parent.HeadChildID)
	}
	second, _ := tr.Get(2)
	if second.NextSiblingID != 3 {
		t.Fatalf("node 2's next sibling: got %d, want 3", second.NextSiblingID)
	}
	third, _ := tr.Get(3)
	if third.PrevSiblingID != 2 {
		t.Fatalf("node 3's prev sibling: got %d, want 2", third.PrevSiblingID)
	}
}

func TestRemovePatchesSiblingChainAroundTheHole(t *testing.T) {
	tr := New()
	tr.Add(AddNode{ID: 1, ParentID: 0, IsGroup: true, PrevSiblingID: emptyID, NextSiblingID: emptyID, HeadChildID: emptyID})
	tr.Add(AddNode{ID: 2, ParentID: 1, PrevSiblingID: emptyID, NextSiblingID: 3})
	tr.Add(AddNode{ID: 3, ParentID: 1, PrevSiblingID: 2, NextSiblingID: emptyID})

	tr.Remove(2)

	third, _ := tr.Get(3)
	if third.PrevSiblingID != emptyID {
		t.Fatalf("node 3's prev sibling after removing 2: got %d, want %d", third.PrevSiblingID, emptyID)
	}
	parent, _ := tr.Get(1)
	if parent.HeadChildID != 3 {
		t.Fatalf("parent head after removing the head child: got %d, want 3", parent.HeadChildID)
	}
}

func TestMoveRepositionsAndClosesOldHole(t *testing.T) {
	tr := New()
	tr.Add(AddNode{ID: 1, ParentID: 0, IsGroup: true, PrevSiblingID: emptyID, NextSiblingID: emptyID, HeadChildID: emptyID})
	tr.Add(AddNode{ID: 2, ParentID: 0, IsGroup: true, PrevSiblingID: 1, NextSiblingID: emptyID})
	tr.Add(AddNode{ID: 3, ParentID: 1, PrevSiblingID: emptyID, NextSiblingID: emptyID})

	tr.Move(MoveNode{ID: 3, ParentID: 2, PrevSiblingID: emptyID, NextSiblingID: emptyID})

	group1, _ := tr.Get(1)
	if group1.HeadChildID != emptyID {
		t.Fatalf("old parent head after move: got %d, want %d", group1.HeadChildID, emptyID)
	}
	group2, _ := tr.Get(2)
	if group2.HeadChildID != 3 {
		t.Fatalf("new parent head after move: got %d, want 3", group2.HeadChildID)
	}
	moved, _ := tr.Get(3)
	if moved.ParentID != 2 {
		t.Fatalf("moved node's parent: got %d, want 2", moved.ParentID)
	}
}

func TestMoveOnUnmirroredNodeBehavesLikeAdd(t *testing.T) {
	tr := New()
	tr.Move(MoveNode{ID: 42, ParentID: 0, PrevSiblingID: emptyID, NextSiblingID: emptyID})
	if _, ok := tr.Get(42); !ok {
		t.Fatal("Move on an unmirrored id should add it")
	}
}

func TestOverflowIncrementsDroppedCountAndLeavesTreeUsable(t *testing.T) {
	tr := New()
	for i := 0; i < MaxNodes; i++ {
		tr.Add(AddNode{ID: int32(i + 1), ParentID: 0, PrevSiblingID: emptyID, NextSiblingID: emptyID})
	}
	tr.Add(AddNode{ID: int32(MaxNodes + 1), ParentID: 0, PrevSiblingID: emptyID, NextSiblingID: emptyID})

	if tr.Header.DroppedCount != 1 {
		t.Fatalf("dropped_count: got %d, want 1", tr.Header.DroppedCount)
	}
	if _, ok := tr.Get(int32(MaxNodes + 1)); ok {
		t.Fatal("the dropped node should not be mirrored")
	}

	tr.Remove(int32(MaxNodes + 1))
	if tr.Header.DroppedCount != 0 {
		t.Fatalf("dropped_count after removing an un-mirrored node: got %d, want 0", tr.Header.DroppedCount)
	}
}

func TestHashSurvivesManyInsertsAndDeletesInterleaved(t *testing.T) {
	tr := New()
	for i := int32(1); i <= 300; i++ {
		tr.Add(AddNode{ID: i, ParentID: 0, PrevSiblingID: emptyID, NextSiblingID: emptyID})
	}
	for i := int32(1); i <= 300; i += 2 {
		tr.Remove(i)
	}
	for i := int32(1); i <= 300; i++ {
		_, ok := tr.Get(i)
		want := i%2 == 0
		if ok != want {
			t.Fatalf("node %d: mirrored=%v, want %v", i, ok, want)
		}
	}
}

func TestDumpJSONOmitsEmptySlots(t *testing.T) {
	tr := New()
	tr.Add(AddNode{ID: 7, ParentID: 0, PrevSiblingID: emptyID, NextSiblingID: emptyID, DefName: "saw"})

	var buf nopWriter
	if err := tr.DumpJSON(&buf); err != nil {
		t.Fatalf("DumpJSON: %v", err)
	}
	if buf.n == 0 {
		t.Fatal("expected DumpJSON to write some output")
	}
}

type nopWriter struct{ n int }

func (w *nopWriter) Write(p []byte) (int, error) {
	w.n += len(p)
	return len(p), nil
}
