package logging

import (
	"math"
	"strings"
)

// ProgressSampler thins subprocess progress logging to one line per step
// percent. A change of key (runner and pass) always logs.
type ProgressSampler struct {
	step float64
	key  string
	next float64
}

// NewProgressSampler returns a sampler that logs every step percent; step <= 0
// means 5.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step}
}

// ShouldLog reports whether percent for key deserves a log line. Negative
// percents mean the tool has not reported progress yet. A nil sampler logs
// everything.
func (s *ProgressSampler) ShouldLog(percent float64, key string) bool {
	if s == nil {
		return true
	}
	key = strings.TrimSpace(key)
	changed := key != "" && key != s.key
	if changed {
		s.key = key
		s.next = 0
	}
	if percent < 0 {
		return changed
	}
	percent = math.Min(percent, 100)
	if percent < s.next {
		return changed
	}
	s.next = (math.Floor(percent/s.step) + 1) * s.step
	return true
}

// Reset forgets the current key, typically when a worker picks up a new task.
func (s *ProgressSampler) Reset() {
	if s != nil {
		s.key, s.next = "", 0
	}
}
