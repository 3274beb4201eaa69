// Package ingest feeds remote task submissions from a Redis stream into the
// task store. Each stream entry names one source file; entries are
// acknowledged once they are stored or found to be unusable.
package ingest
