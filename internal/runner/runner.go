package runner

import (
	"context"
)

// Runner is one stage of the processing pipeline.
type Runner interface {
	ID() string
	Name() string
	// Run inspects rc and requests work by setting ExecCommand and related
	// fields. Returning an error fails the stage.
	Run(ctx context.Context, rc *Context) error
}

// Context is the mutable per-pass state shared between a worker and a runner.
// The worker resets every field before each pass.
type Context struct {
	TaskID    int64
	LibraryID int64
	// Pass starts at 1 and increments each time the runner asks to repeat.
	Pass int

	ExecCommand    []string
	ProgressParser ProgressParser
	FileIn         string
	FileOut        string
	// OriginalFilePath is the task source and must not be modified.
	OriginalFilePath string
	Repeat           bool
}

// Progress is a parsed snapshot of subprocess output.
type Progress struct {
	// Percent is negative when the line carried no percentage.
	Percent float64
	Stage   string
	Message string
}

// ProgressParser extracts progress from subprocess output lines. Parsers may
// keep state between lines and are created fresh for each subprocess.
type ProgressParser interface {
	Parse(line string) (Progress, bool)
}

// Health summarizes the readiness of a runner.
type Health struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(id, name string) Health {
	return Health{ID: id, Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(id, name, detail string) Health {
	return Health{ID: id, Name: name, Ready: false, Detail: detail}
}
