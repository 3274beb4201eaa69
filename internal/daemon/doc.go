// Package daemon coordinates the long-running reel process.
//
// It wires configuration, the task store, the runner registry, the foreman
// and the optional Redis ingest consumer into a single lifecycle guarded by a
// flock so only one instance owns a data directory. The daemon also exposes
// the HTTP API and the command surface the IPC server forwards to.
//
// Keep orchestration here. Scheduling belongs to the foreman and task
// execution to the workers.
package daemon
