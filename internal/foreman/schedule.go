package foreman

import (
	"context"
	"strings"
	"time"

	"reel/internal/config"
	"reel/internal/logging"
)

// scheduleMatches reports whether s fires at the wall-clock minute of now.
func scheduleMatches(s config.Schedule, now time.Time) bool {
	hour, minute, err := config.ParseClock(s.Time)
	if err != nil || now.Hour() != hour || now.Minute() != minute {
		return false
	}
	day := now.Weekday()
	switch rep := strings.ToLower(strings.TrimSpace(s.Repetition)); rep {
	case "daily":
		return true
	case "weekday":
		return day >= time.Monday && day <= time.Friday
	case "weekend":
		return day == time.Saturday || day == time.Sunday
	default:
		return strings.ToLower(day.String()) == rep
	}
}

// applySchedules runs the schedules matching the current minute once.
func (f *Foreman) applySchedules(ctx context.Context) {
	if len(f.settings.Schedules) == 0 {
		return
	}
	now := f.now()
	minute := now.Truncate(time.Minute)
	if minute.Equal(f.lastScheduleMinute) {
		return
	}
	f.lastScheduleMinute = minute

	logger := logging.WithContext(ctx, f.logger)
	for _, s := range f.settings.Schedules {
		if !scheduleMatches(s, now) {
			continue
		}
		logger.Info("applying worker schedule",
			logging.EventType("schedule_applied"),
			logging.String("repetition", s.Repetition),
			logging.String("time", s.Time),
			logging.String("task", s.Task),
		)
		switch s.Task {
		case "count":
			f.SetWorkerCount(s.WorkerCount)
		case "pause":
			f.PauseAll()
		case "resume":
			f.ResumeAll()
		}
	}
}
