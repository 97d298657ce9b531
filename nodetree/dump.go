// dump.go — diagnostic JSON snapshot of the mirror.
//
// Only for test fixtures and human inspection; never called from the
// render path. Uses sonnet rather than encoding/json to keep every
// diagnostic consumer on the same fast JSON path the rest of this
// lineage uses.
package nodetree

import (
	"io"

	"github.com/sugawarayuuta/sonnet"
)

type dumpEntry struct {
	ID            int32  `json:"id"`
	ParentID      int32  `json:"parent_id"`
	IsGroup       bool   `json:"is_group"`
	PrevSiblingID int32  `json:"prev_sibling_id"`
	NextSiblingID int32  `json:"next_sibling_id"`
	HeadChildID   int32  `json:"head_child_id"`
	DefName       string `json:"def_name"`
}

type dumpHeader struct {
	NodeCount    uint32 `json:"node_count"`
	Version      uint32 `json:"version"`
	DroppedCount uint32 `json:"dropped_count"`
}

type dumpSnapshot struct {
	Header  dumpHeader  `json:"header"`
	Entries []dumpEntry `json:"entries"`
}

// DumpJSON serializes the mirror's current contents to w.
func (t *Tree) DumpJSON(w io.Writer) error {
	snap := dumpSnapshot{Header: dumpHeader{
		NodeCount:    t.Header.NodeCount,
		Version:      t.Header.Version.Load(),
		DroppedCount: t.Header.DroppedCount,
	}}
	for i := range t.entries {
		e := &t.entries[i]
		if e.ID == emptyID {
			continue
		}
		snap.Entries = append(snap.Entries, dumpEntry{
			ID:            e.ID,
			ParentID:      e.ParentID,
			IsGroup:       e.IsGroup,
			PrevSiblingID: e.PrevSiblingID,
			NextSiblingID: e.NextSiblingID,
			HeadChildID:   e.HeadChildID,
			DefName:       defNameString(e),
		})
	}
	b, err := sonnet.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func defNameString(e *Entry) string {
	n := 0
	for n < DefNameSize && e.DefName[n] != 0 {
		n++
	}
	return string(e.DefName[:n])
}
