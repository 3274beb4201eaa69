// Package foreman owns the worker pool and the dispatch loop.
//
// A single goroutine ticks at a fixed interval: it drains completion reports
// into the task store, reconciles the pool with the target size, validates the
// runner registry and hands claimed tasks to idle workers through per-worker
// capacity-1 slots. Worker failures never reach the tick; a tick failure is
// fatal and stops every worker.
package foreman
