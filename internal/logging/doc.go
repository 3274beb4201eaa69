// Package logging assembles structured slog loggers and formatting helpers used
// across reel services.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so worker and scheduler code can tag log
// lines with task IDs, worker IDs, runner ids and correlation IDs. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
