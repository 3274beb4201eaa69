package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"reel/internal/services"
)

// Enqueue inserts a pending task. Any existing task with the same source path,
// whatever its status, causes ErrDuplicateSource.
func (s *Store) Enqueue(ctx context.Context, req NewTask) (int64, error) {
	source := strings.TrimSpace(req.SourcePath)
	if source == "" || !filepath.IsAbs(source) {
		return 0, services.Wrap(services.ErrValidation, "queue", "enqueue", fmt.Sprintf("source path %q must be absolute", req.SourcePath), nil)
	}
	source = filepath.Clean(source)

	now := s.now()
	cachePath := strings.TrimSpace(req.CachePath)
	if cachePath == "" {
		if s.cacheDir == "" {
			return 0, services.Wrap(services.ErrConfiguration, "queue", "enqueue", "no cache directory configured", nil)
		}
		cachePath = BuildCachePath(s.cacheDir, source, now)
	}
	if filepath.Clean(cachePath) == source {
		return 0, services.Wrap(services.ErrValidation, "queue", "enqueue", "cache path must differ from source path", nil)
	}

	kind := req.Kind
	if kind == "" {
		kind = KindLocal
	}
	if kind != KindLocal && kind != KindRemote {
		return 0, services.Wrap(services.ErrValidation, "queue", "enqueue", fmt.Sprintf("unknown kind %q", kind), nil)
	}
	libraryID := req.LibraryID
	if libraryID == 0 {
		libraryID = DefaultLibraryID
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (source_path, cache_path, priority, kind, library_id, status, created_at)
             VALUES (?, ?, 0, ?, ?, ?, ?)`,
			source, cachePath, string(kind), libraryID, StatusPending, formatTime(now),
		)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		priority := id
		if req.Priority != nil {
			priority = *req.Priority
		}
		_, err = tx.ExecContext(ctx, `UPDATE tasks SET priority = ? WHERE id = ?`, priority, id)
		return err
	})
	if isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateSource, source)
	}
	if err != nil {
		return 0, fmt.Errorf("enqueue task: %w", err)
	}
	return id, nil
}

// Get fetches a task by identifier, including its log. Missing tasks return nil, nil.
func (s *Store) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// FindBySource returns the task referencing source, or nil when none exists.
func (s *Store) FindBySource(ctx context.Context, source string) (*Task, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumnsNoLog+` FROM tasks WHERE source_path = ?`, filepath.Clean(source))
	task, err := scanTask(row, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source: %w", err)
	}
	return task, nil
}

// List returns tasks in dispatch order (priority descending, id ascending).
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Task, error) {
	columns := taskColumnsNoLog
	if opts.IncludeLog {
		columns = taskColumns
	}
	query := `SELECT ` + columns + ` FROM tasks`
	var args []any
	if len(opts.Statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(opts.Statuses)) + `)`
		for _, status := range opts.Statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY priority DESC, id ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows, opts.IncludeLog)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// IsEmpty reports whether no task has the given status.
func (s *Store) IsEmpty(ctx context.Context, status Status) (bool, error) {
	var exists int
	err := retryOnBusy(ensureContext(ctx), func() error {
		return s.db.QueryRowContext(ensureContext(ctx),
			`SELECT EXISTS(SELECT 1 FROM tasks WHERE status = ?)`, string(status),
		).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("check %s tasks: %w", status, err)
	}
	return exists == 0, nil
}

// Count returns the number of tasks with the given status.
func (s *Store) Count(ctx context.Context, status Status) (int, error) {
	var count int
	err := retryOnBusy(ensureContext(ctx), func() error {
		return s.db.QueryRowContext(ensureContext(ctx),
			`SELECT COUNT(1) FROM tasks WHERE status = ?`, string(status),
		).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s tasks: %w", status, err)
	}
	return count, nil
}

// Reorder moves pending tasks to the top or bottom of the dispatch order and
// returns how many rows moved. Tasks that are not pending are left alone.
// Moving to the top keeps the relative order of the moved tasks.
func (s *Store) Reorder(ctx context.Context, ids []int64, position Position) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	inClause := `id IN (` + makePlaceholders(len(ids)) + `) AND status = ?`
	args := append(int64Args(ids), string(StatusPending))

	var moved int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var res sql.Result
		var err error
		switch position {
		case PositionTop:
			var maxPriority int64
			if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(priority), 0) FROM tasks`).Scan(&maxPriority); err != nil {
				return err
			}
			res, err = tx.ExecContext(ctx,
				`UPDATE tasks SET priority = priority + ? WHERE `+inClause,
				append([]any{maxPriority + reorderTopOffset}, args...)...,
			)
		case PositionBottom:
			res, err = tx.ExecContext(ctx, `UPDATE tasks SET priority = 0 WHERE `+inClause, args...)
		default:
			return services.Wrap(services.ErrValidation, "queue", "reorder", fmt.Sprintf("unknown position %q", position), nil)
		}
		if err != nil {
			return err
		}
		moved, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reorder tasks: %w", err)
	}
	return moved, nil
}

// Remove deletes a processed task. Retention tooling calls this; the
// scheduler never deletes tasks.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ? AND status = ?`, id, string(StatusProcessed))
	if err != nil {
		return fmt.Errorf("remove task: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected > 0 {
		return nil
	}
	task, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return fmt.Errorf("%w: task %d is %s, only processed tasks can be removed", ErrConsistency, id, task.Status)
}
