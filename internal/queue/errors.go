package queue

import (
	"errors"
	"fmt"

	"reel/internal/services"
)

var (
	// ErrDuplicateSource is returned by Enqueue when any task already references the source path.
	ErrDuplicateSource = fmt.Errorf("%w: task already exists for source path", services.ErrValidation)
	// ErrConsistency reports a status transition that the current row does not allow,
	// such as completing a task that is not in progress.
	ErrConsistency = errors.New("task state consistency violation")
	// ErrNotFound is returned when a task id does not exist.
	ErrNotFound = fmt.Errorf("task %w", services.ErrNotFound)
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
