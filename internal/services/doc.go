// Package services defines shared plumbing consumed by the store, workers and
// outer surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, worker IDs, runner ids, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can separate
//     retryable failures from permanent ones.
package services
