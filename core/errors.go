package core

import "errors"

// ErrEngineNotReady is returned by Bind's setup-time check. The render
// entrypoint itself never returns a Go error: per the render thread's
// no-panic policy, every render-path failure becomes a status-flag
// bit and a counter instead, matching ring.Write, scheduler.Add, and
// reader.Next's plain bool returns rather than an error allocation on
// every failed attempt — which is also why no sentinel errors exist
// for ring-full, scheduler-full, or malformed-frame conditions: those
// three are exactly the render-path failures this policy routes
// around errors.Is entirely, in favor of control.Flags bits and
// metrics.Block counters.
var ErrEngineNotReady = errors.New("core: engine not ready")
