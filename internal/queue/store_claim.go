package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ClaimNext atomically picks the best pending task matching filter, marks it
// in_progress for workerID and returns it. It returns nil, nil when nothing is
// eligible. The select and update run as one statement, so concurrent callers
// never receive the same task.
func (s *Store) ClaimNext(ctx context.Context, filter ClaimFilter, workerID string) (*Task, error) {
	ctx = ensureContext(ctx)
	clause, filterArgs := filterClause(filter)

	query := `UPDATE tasks
         SET status = ?, processed_by = ?, start_time = ?
         WHERE status = ? AND id = (
             SELECT id FROM tasks
             WHERE status = ?` + clause + `
             ORDER BY priority DESC, id ASC
             LIMIT 1
         )
         RETURNING ` + taskColumns

	args := []any{string(StatusInProgress), workerID, formatTime(s.now()), string(StatusPending), string(StatusPending)}
	args = append(args, filterArgs...)

	var task *Task
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, args...)
		claimed, err := scanTask(row, true)
		if errors.Is(err, sql.ErrNoRows) {
			task = nil
			return nil
		}
		if err != nil {
			return err
		}
		task = claimed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next task: %w", err)
	}
	return task, nil
}

// Complete flips an in_progress task to processed, storing success, the
// finish time and appending log. Any other current status yields ErrConsistency.
func (s *Store) Complete(ctx context.Context, id int64, success bool, log string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, success = ?, finish_time = ?, log = log || ?
         WHERE id = ? AND status = ?`,
		string(StatusProcessed), boolToInt(success), formatTime(s.now()), log, id, string(StatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("complete task %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete task %d: %w", id, err)
	}
	if affected == 1 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ensureContext(ctx), `SELECT status FROM tasks WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("complete task %d: %w", id, err)
	}
	return fmt.Errorf("%w: task %d is %s, expected %s", ErrConsistency, id, status, StatusInProgress)
}

// ResetInProgress returns tasks left in_progress by a previous process to
// pending. Only call this before any worker is running.
func (s *Store) ResetInProgress(ctx context.Context) (int64, error) {
	note := "\n\n" + strings.Repeat("-", 20) + "\nReset to pending after daemon restart\n"
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks SET status = ?, processed_by = NULL, start_time = NULL, log = log || ? WHERE status = ?`,
		string(StatusPending), note, string(StatusInProgress),
	)
	if err != nil {
		return 0, fmt.Errorf("reset in-progress tasks: %w", err)
	}
	return res.RowsAffected()
}

// Requeue returns a claimed task that never reached a worker to pending.
func (s *Store) Requeue(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks SET status = ?, processed_by = NULL, start_time = NULL WHERE id = ? AND status = ?`,
		string(StatusPending), id, string(StatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("requeue task %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		return fmt.Errorf("%w: task %d is not in progress", ErrConsistency, id)
	}
	return nil
}

// UpdateCachePath records where a worker left the final output of an
// in-progress task. The extension may differ from the generated path.
func (s *Store) UpdateCachePath(ctx context.Context, id int64, cachePath string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks SET cache_path = ? WHERE id = ? AND status = ?`,
		cachePath, id, string(StatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("update cache path for task %d: %w", id, err)
	}
	if affected, _ := res.RowsAffected(); affected != 1 {
		return fmt.Errorf("%w: task %d is not in progress", ErrConsistency, id)
	}
	return nil
}
