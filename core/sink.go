// sink.go — Core's implementations of the engine's collaborator-facing
// interfaces: ReplySink (outbound replies and log lines) and
// NodeObserver (node lifecycle events folded into the mirror).
package core

import (
	"supersonic/control"
	"supersonic/engine"
	"supersonic/nodetree"
	"supersonic/scheduler"
)

var _ engine.ReplySink = (*Core)(nil)
var _ engine.NodeObserver = (*Core)(nil)

// Reply implements engine.ReplySink by writing payload to the outbound
// ring. reply is accepted for interface symmetry with DispatchBundle's
// addressing but is not parsed or otherwise used — the outbound ring
// has a single consumer (the control thread) regardless of which
// origin a reply answers.
func (c *Core) Reply(payload []byte, reply scheduler.ReplyAddr) bool {
	if !c.out.Write(payload) {
		c.flags.Set(control.BufferFull | control.Overrun)
		return false
	}
	c.met.OutBytesTotal.Add(uint32(len(payload)))
	return true
}

// Log implements engine.ReplySink by writing line, newline-terminated,
// to the debug ring. Uses c.logLine, a fixed scratch buffer sized once
// at construction, rather than allocating per call — this fan-out runs
// on the render thread inside ProcessAudio. A line longer than the
// buffer is truncated to make room for the trailing newline.
func (c *Core) Log(line string) {
	n := copy(c.logLine[:len(c.logLine)-1], line)
	c.logLine[n] = '\n'
	buf := c.logLine[:n+1]
	if !c.dbg.Write(buf) {
		c.flags.Set(control.BufferFull | control.Overrun)
		return
	}
	c.met.DebugBytesTotal.Add(uint32(len(buf)))
}

// NodeAdded implements engine.NodeObserver.
func (c *Core) NodeAdded(n engine.NodeEvent) {
	c.mirror.Add(nodetree.AddNode{
		ID:            n.ID,
		ParentID:      n.ParentID,
		IsGroup:       n.IsGroup,
		PrevSiblingID: n.PrevSiblingID,
		NextSiblingID: n.NextSiblingID,
		HeadChildID:   n.HeadChildID,
		DefName:       n.DefName,
	})
}

// NodeRemoved implements engine.NodeObserver.
func (c *Core) NodeRemoved(id int32) {
	c.mirror.Remove(id)
}

// NodeMoved implements engine.NodeObserver.
func (c *Core) NodeMoved(n engine.NodeEvent) {
	c.mirror.Move(nodetree.MoveNode{
		ID:            n.ID,
		ParentID:      n.ParentID,
		IsGroup:       n.IsGroup,
		PrevSiblingID: n.PrevSiblingID,
		NextSiblingID: n.NextSiblingID,
		HeadChildID:   n.HeadChildID,
		DefName:       n.DefName,
	})
}
