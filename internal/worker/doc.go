// Package worker runs the long-lived goroutines that execute claimed tasks.
//
// A worker waits on its own capacity-1 handoff slot, drives the task through the
// runner chain, launches requested subprocesses in their own process group,
// and reports a Result on the completion channel. The scheduler controls a
// worker only through its paused and redundant flags; everything else in the
// Status snapshot is written by the worker goroutine itself.
package worker
