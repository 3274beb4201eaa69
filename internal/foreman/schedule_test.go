package foreman

import (
	"context"
	"testing"
	"time"

	"reel/internal/config"
	"reel/internal/runner"
)

func TestScheduleMatches(t *testing.T) {
	// 2024-03-09 is a Saturday.
	saturday := time.Date(2024, 3, 9, 22, 30, 15, 0, time.Local)
	monday := time.Date(2024, 3, 11, 22, 30, 0, 0, time.Local)

	tests := []struct {
		name string
		s    config.Schedule
		now  time.Time
		want bool
	}{
		{"daily", config.Schedule{Repetition: "daily", Time: "22:30"}, saturday, true},
		{"wrong minute", config.Schedule{Repetition: "daily", Time: "22:31"}, saturday, false},
		{"weekend on saturday", config.Schedule{Repetition: "weekend", Time: "22:30"}, saturday, true},
		{"weekday on saturday", config.Schedule{Repetition: "weekday", Time: "22:30"}, saturday, false},
		{"weekday on monday", config.Schedule{Repetition: "weekday", Time: "22:30"}, monday, true},
		{"named day", config.Schedule{Repetition: "monday", Time: "22:30"}, monday, true},
		{"other named day", config.Schedule{Repetition: "sunday", Time: "22:30"}, monday, false},
		{"bad time", config.Schedule{Repetition: "daily", Time: "late"}, saturday, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := scheduleMatches(tc.s, tc.now); got != tc.want {
				t.Fatalf("scheduleMatches = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplySchedulesOncePerMinute(t *testing.T) {
	settings := config.Workers{
		Count: 1,
		Schedules: []config.Schedule{
			{Repetition: "daily", Time: "02:00", Task: "count", WorkerCount: 4},
		},
	}
	f := New(Options{Registry: runner.NewRegistry(), Settings: settings})
	clock := time.Date(2024, 3, 9, 2, 0, 5, 0, time.Local)
	f.now = func() time.Time { return clock }

	f.applySchedules(context.Background())
	if got := f.WorkerCount(); got != 4 {
		t.Fatalf("WorkerCount = %d, want 4", got)
	}

	// An operator change inside the same minute is not overwritten.
	f.SetWorkerCount(2)
	clock = clock.Add(30 * time.Second)
	f.applySchedules(context.Background())
	if got := f.WorkerCount(); got != 2 {
		t.Fatalf("schedule re-applied within the minute: %d", got)
	}

	clock = clock.Add(time.Minute)
	f.applySchedules(context.Background())
	if got := f.WorkerCount(); got != 2 {
		t.Fatalf("schedule applied outside its minute: %d", got)
	}
}
