// Package ipc exposes the daemon over JSON-RPC on a Unix domain socket and
// ships the matching client used by the CLI.
//
// Requests and responses reuse the api DTOs so the socket and HTTP surfaces
// report identical shapes. Worker commands with an empty id address every
// worker.
package ipc
