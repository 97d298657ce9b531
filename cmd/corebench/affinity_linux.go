//go:build linux

// affinity_linux.go pins the calling OS thread to a single logical CPU,
// the same job the teacher's ring/setaffinity_linux.go does with a raw
// SYS_SCHED_SETAFFINITY syscall. Here it goes through golang.org/x/sys/unix
// instead, since this harness runs on an ordinary goroutine rather than
// in an ISR-aligned hot path where avoiding the package's syscall
// wrapper would matter.
package main

import "golang.org/x/sys/unix"

// pinCurrentThread pins the calling goroutine's OS thread to cpu. The
// caller must have already called runtime.LockOSThread. Errors are
// swallowed: on a cgroup-restricted or containerized host the call may
// return EPERM/EINVAL, and falling back to unpinned scheduling is a
// better outcome than aborting the benchmark.
func pinCurrentThread(cpu int) {
	if cpu < 0 {
		return
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	_ = unix.SchedSetaffinity(0, &set)
}
