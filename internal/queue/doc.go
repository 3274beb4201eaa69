// Package queue persists transcoding tasks in SQLite and exposes the
// operations that drive their lifecycle.
//
// Tasks move strictly forward: pending, in_progress, processed. The claim
// operation is a single UPDATE ... RETURNING statement so concurrent workers
// can never receive the same task, and completion only succeeds from
// in_progress. Ordering is priority descending with id as the tie-break; the
// default priority is the row id, so untouched tasks run in insertion order.
//
// Busy database errors are retried with backoff and surface as transient
// failures when retries are exhausted. A schema version mismatch is fatal.
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
