package api

import (
	"time"

	"reel/internal/deps"
	"reel/internal/foreman"
	"reel/internal/queue"
	"reel/internal/runner"
	"reel/internal/worker"
)

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromTask converts a task record to its API representation.
func FromTask(task *queue.Task) Task {
	if task == nil {
		return Task{}
	}
	dto := Task{
		ID:          task.ID,
		SourcePath:  task.SourcePath,
		CachePath:   task.CachePath,
		Priority:    task.Priority,
		Kind:        string(task.Kind),
		LibraryID:   task.LibraryID,
		Status:      string(task.Status),
		StartTime:   formatTime(task.StartTime),
		FinishTime:  formatTime(task.FinishTime),
		ProcessedBy: task.ProcessedBy,
		CreatedAt:   formatTime(&task.CreatedAt),
		Log:         task.Log,
	}
	if task.Success != nil {
		success := *task.Success
		dto.Success = &success
	}
	return dto
}

// FromTasks converts a slice of task records.
func FromTasks(tasks []*queue.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, FromTask(task))
	}
	return out
}

// FromWorkerStatus converts a worker snapshot.
func FromWorkerStatus(s worker.Status) Worker {
	dto := Worker{
		ID:          s.ID,
		Name:        s.Name,
		State:       string(s.State),
		Idle:        s.Idle(),
		Paused:      s.Paused,
		Redundant:   s.Redundant,
		TaskID:      s.TaskID,
		CurrentFile: s.SourcePath,
		StartTime:   formatTime(s.StartTime),
		Runner:      s.Runner,
		Pass:        s.Pass,
		Subprocess: SubprocessInfo{
			Percent:        s.Percent,
			ElapsedSeconds: s.Elapsed.Seconds(),
			PID:            s.PID,
		},
		LogTail: s.LogTail,
	}
	for _, info := range s.RunnersInfo {
		dto.Runners = append(dto.Runners, RunnerProgress(info))
	}
	return dto
}

// FromSummary converts the scheduler summary.
func FromSummary(summary foreman.Summary) SchedulerStatus {
	out := SchedulerStatus{
		Running:        summary.Running,
		TargetWorkers:  summary.TargetWorkers,
		Workers:        make([]Worker, 0, len(summary.Workers)),
		QueueStats:     MergeQueueStats(summary.Queue),
		RunnersBlocked: summary.RunnersBlocked,
		LastError:      summary.LastError,
	}
	for _, w := range summary.Workers {
		out.Workers = append(out.Workers, FromWorkerStatus(w))
	}
	if summary.Host != nil {
		host := HostStats(*summary.Host)
		out.Host = &host
	}
	return out
}

// MergeQueueStats produces a string-keyed representation of queue stats with
// every status present.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromRunnerHealth converts runner readiness reports.
func FromRunnerHealth(health []runner.Health) []RunnerHealth {
	out := make([]RunnerHealth, 0, len(health))
	for _, h := range health {
		out = append(out, RunnerHealth(h))
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus(s))
	}
	return out
}
