package ipc

import "reel/internal/api"

const serviceName = "Reel"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse wraps the daemon status.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// StopRequest asks the daemon process to exit.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// TaskAddRequest submits a local file.
type TaskAddRequest = api.AddTaskRequest

// TaskListRequest filters the task listing.
type TaskListRequest struct {
	Statuses []string `json:"statuses"`
	Limit    int      `json:"limit"`
}

// TaskListResponse contains tasks in dispatch order.
type TaskListResponse = api.TaskListResponse

// TaskDescribeRequest fetches a task with its log.
type TaskDescribeRequest struct {
	ID int64 `json:"id"`
}

// TaskResponse wraps a single task.
type TaskResponse = api.TaskResponse

// TaskReorderRequest moves pending tasks.
type TaskReorderRequest = api.ReorderRequest

// TaskReorderResponse reports moved tasks.
type TaskReorderResponse = api.ReorderResponse

// TaskRemoveRequest deletes a processed task.
type TaskRemoveRequest struct {
	ID int64 `json:"id"`
}

// TaskRemoveResponse acknowledges removal.
type TaskRemoveResponse struct {
	Removed bool `json:"removed"`
}

// WorkerRequest addresses one worker by id, or all when ID is empty.
type WorkerRequest struct {
	ID string `json:"id"`
}

// WorkerResponse acknowledges a worker command.
type WorkerResponse struct {
	OK bool `json:"ok"`
}

// WorkerCountRequest sets the target pool size.
type WorkerCountRequest = api.WorkerCountRequest

// WorkerCountResponse echoes the new target.
type WorkerCountResponse struct {
	Count int `json:"count"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// QueueHealthRequest fetches aggregate task counts.
type QueueHealthRequest struct{}

// QueueHealthResponse reports task counts.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// DatabaseHealthRequest fetches database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database diagnostics.
type DatabaseHealthResponse struct {
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   string `json:"integrity_check"`
	TotalTasks       int    `json:"total_tasks"`
	Error            string `json:"error"`
}

// TestNotificationRequest triggers a webhook test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports the test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
