package queue

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

const taskColumnsNoLog = "id, source_path, cache_path, priority, kind, library_id, status, success, start_time, finish_time, processed_by, created_at"

const taskColumns = taskColumnsNoLog + ", log"

type rowScanner interface{ Scan(dest ...any) error }

func scanTask(scanner rowScanner, withLog bool) (*Task, error) {
	var (
		id          int64
		sourcePath  string
		cachePath   string
		priority    int64
		kind        string
		libraryID   int64
		status      string
		success     sql.NullInt64
		startRaw    sql.NullString
		finishRaw   sql.NullString
		processedBy sql.NullString
		createdRaw  sql.NullString
		logText     sql.NullString
	)

	dest := []any{
		&id, &sourcePath, &cachePath, &priority, &kind, &libraryID, &status,
		&success, &startRaw, &finishRaw, &processedBy, &createdRaw,
	}
	if withLog {
		dest = append(dest, &logText)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	task := &Task{
		ID:          id,
		SourcePath:  sourcePath,
		CachePath:   cachePath,
		Priority:    priority,
		Kind:        Kind(kind),
		LibraryID:   libraryID,
		Status:      Status(status),
		ProcessedBy: processedBy.String,
		Log:         logText.String,
	}
	if success.Valid {
		ok := success.Int64 != 0
		task.Success = &ok
	}
	if startRaw.Valid {
		if ts, err := parseTimeString(startRaw.String); err == nil {
			task.StartTime = &ts
		}
	}
	if finishRaw.Valid {
		if ts, err := parseTimeString(finishRaw.String); err == nil {
			task.FinishTime = &ts
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	return task, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

// filterClause renders the WHERE fragment for a claim filter.
func filterClause(filter ClaimFilter) (string, []any) {
	var (
		parts []string
		args  []any
	)
	if len(filter.LibraryIDs) > 0 {
		parts = append(parts, "library_id IN ("+makePlaceholders(len(filter.LibraryIDs))+")")
		for _, id := range filter.LibraryIDs {
			args = append(args, id)
		}
	}
	if len(filter.Kinds) > 0 {
		parts = append(parts, "kind IN ("+makePlaceholders(len(filter.Kinds))+")")
		for _, kind := range filter.Kinds {
			args = append(args, string(kind))
		}
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(parts, " AND "), args
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
