package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusProcessed  Status = "processed"
)

var allStatuses = []Status{StatusPending, StatusInProgress, StatusProcessed}

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.ReplaceAll(strings.TrimSpace(value), "-", "_")))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// Kind distinguishes tasks discovered locally from those submitted by a remote producer.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// DefaultLibraryID is the reserved id of the default library.
const DefaultLibraryID int64 = 1

// Position selects where Reorder moves tasks.
type Position string

const (
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
)

// reorderTopOffset lifts tasks above the current maximum priority.
const reorderTopOffset = 500

// Task is one input file tracked through the pipeline.
type Task struct {
	ID          int64      `json:"id"`
	SourcePath  string     `json:"source_path"`
	CachePath   string     `json:"cache_path"`
	Priority    int64      `json:"priority"`
	Kind        Kind       `json:"kind"`
	LibraryID   int64      `json:"library_id"`
	Status      Status     `json:"status"`
	Success     *bool      `json:"success,omitempty"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	FinishTime  *time.Time `json:"finish_time,omitempty"`
	ProcessedBy string     `json:"processed_by,omitempty"`
	Log         string     `json:"log,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Succeeded reports whether a processed task finished successfully.
func (t *Task) Succeeded() bool {
	return t != nil && t.Success != nil && *t.Success
}

// NewTask describes a task submission.
type NewTask struct {
	SourcePath string
	// CachePath is generated under the store's cache directory when empty.
	CachePath string
	// Priority overrides the default insertion-order priority when set.
	Priority  *int64
	Kind      Kind
	LibraryID int64
}

// ClaimFilter restricts which pending tasks a claim may return. Empty fields match everything.
type ClaimFilter struct {
	LibraryIDs []int64
	Kinds      []Kind
}

// ListOptions filters List results.
type ListOptions struct {
	Statuses []Status
	Limit    int
	// IncludeLog controls whether the potentially large log column is loaded.
	IncludeLog bool
}

// HealthSummary aggregates task counts for status output.
type HealthSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// DatabaseHealth reports diagnostics about the task database file.
type DatabaseHealth struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   string `json:"integrity_check"`
	TotalTasks       int    `json:"total_tasks"`
	Error            string `json:"error,omitempty"`
}
