package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes a queued task in a transport-friendly format.
type Task struct {
	ID          int64  `json:"id"`
	SourcePath  string `json:"sourcePath"`
	CachePath   string `json:"cachePath"`
	Priority    int64  `json:"priority"`
	Kind        string `json:"kind"`
	LibraryID   int64  `json:"libraryId"`
	Status      string `json:"status"`
	Success     *bool  `json:"success,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	FinishTime  string `json:"finishTime,omitempty"`
	ProcessedBy string `json:"processedBy,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	Log         string `json:"log,omitempty"`
}

// SubprocessInfo reports the running command of a worker.
type SubprocessInfo struct {
	Percent        float64 `json:"percent"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	PID            int     `json:"pid,omitempty"`
}

// RunnerProgress is the per-runner state of the worker's current task.
type RunnerProgress struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
}

// Worker is a point-in-time worker snapshot.
type Worker struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	State       string           `json:"state"`
	Idle        bool             `json:"idle"`
	Paused      bool             `json:"paused"`
	Redundant   bool             `json:"redundant"`
	TaskID      int64            `json:"taskId,omitempty"`
	CurrentFile string           `json:"currentFile,omitempty"`
	StartTime   string           `json:"startTime,omitempty"`
	Runner      string           `json:"runner,omitempty"`
	Pass        int              `json:"pass,omitempty"`
	Subprocess  SubprocessInfo   `json:"subprocess"`
	Runners     []RunnerProgress `json:"runners,omitempty"`
	LogTail     []string         `json:"logTail,omitempty"`
}

// HostStats mirrors host resource usage.
type HostStats struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsed    uint64  `json:"memoryUsed"`
	MemoryTotal   uint64  `json:"memoryTotal"`
}

// SchedulerStatus summarizes the worker pool.
type SchedulerStatus struct {
	Running        bool           `json:"running"`
	TargetWorkers  int            `json:"targetWorkers"`
	Workers        []Worker       `json:"workers"`
	QueueStats     map[string]int `json:"queueStats"`
	Host           *HostStats     `json:"host,omitempty"`
	RunnersBlocked bool           `json:"runnersBlocked"`
	LastError      string         `json:"lastError,omitempty"`
}

// RunnerHealth mirrors readiness reporting for pipeline runners.
type RunnerHealth struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external executable.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"startedAt,omitempty"`
	DatabasePath string             `json:"databasePath"`
	LockFilePath string             `json:"lockFilePath"`
	Scheduler    SchedulerStatus    `json:"scheduler"`
	Runners      []RunnerHealth     `json:"runners"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// TaskListResponse wraps a collection of tasks.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task Task `json:"task"`
}

// AddTaskRequest submits a local file.
type AddTaskRequest struct {
	SourcePath string `json:"sourcePath"`
	LibraryID  int64  `json:"libraryId,omitempty"`
	Priority   *int64 `json:"priority,omitempty"`
}

// ReorderRequest moves pending tasks to the top or bottom of the queue.
type ReorderRequest struct {
	IDs      []int64 `json:"ids"`
	Position string  `json:"position"`
}

// ReorderResponse reports how many tasks moved.
type ReorderResponse struct {
	Updated int64 `json:"updated"`
}

// WorkerCountRequest sets the target pool size.
type WorkerCountRequest struct {
	Count int `json:"count"`
}

// ErrorResponse is the body of every non-2xx HTTP response.
type ErrorResponse struct {
	Error string `json:"error"`
}
