package worker

import (
	"strings"
	"sync"
)

// logTail keeps the most recent lines of a task transcript.
type logTail struct {
	mu    sync.Mutex
	lines []string
	limit int
	// partial holds text after the last newline so split writes join up.
	partial string
}

func newLogTail(limit int) *logTail {
	return &logTail{limit: limit}
}

func (t *logTail) Write(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	text = t.partial + text
	parts := strings.Split(text, "\n")
	t.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		t.lines = append(t.lines, line)
	}
	if over := len(t.lines) - t.limit; over > 0 {
		t.lines = append(t.lines[:0:0], t.lines[over:]...)
	}
}

func (t *logTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]string(nil), t.lines...)
	if t.partial != "" {
		out = append(out, t.partial)
		if len(out) > t.limit {
			out = out[len(out)-t.limit:]
		}
	}
	return out
}

func (t *logTail) Reset() {
	t.mu.Lock()
	t.lines = nil
	t.partial = ""
	t.mu.Unlock()
}

// taskLog accumulates the full transcript for a task and mirrors it into the
// live tail.
type taskLog struct {
	b    strings.Builder
	tail *logTail
}

func (l *taskLog) Append(parts ...string) {
	for _, p := range parts {
		l.b.WriteString(p)
		l.tail.Write(p)
	}
}

func (l *taskLog) String() string { return l.b.String() }
