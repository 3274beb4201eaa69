// Package api defines wire-format types and converters shared by the HTTP API
// and the IPC layer. It translates task, worker and scheduler models into
// transport-friendly DTOs so clients never couple to internal types.
//
// DTOs use camelCase JSON tags. Enumerations (task status, worker state) are
// lowercase strings and timestamps are RFC3339 with milliseconds in UTC.
package api
