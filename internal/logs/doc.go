// Package logs reads the daemon log file for the CLI and IPC clients.
//
// A negative offset returns the last N lines. A non-negative offset reads
// forward from that byte position and, in follow mode, polls until new lines
// arrive or the wait expires. Offsets past the end of the file are treated as
// a rotation and restart from the beginning.
package logs
