//go:build !linux

package main

// pinCurrentThread is a no-op on platforms without sched_setaffinity,
// so the harness runs unconditionally on every target.
func pinCurrentThread(cpu int) {}
