package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	validRunnerTypes   = map[string]struct{}{"command": {}, "drapto": {}, "copy": {}}
	validProgressKinds = map[string]struct{}{"": {}, "none": {}, "ffmpeg": {}, "percent": {}, "drapto": {}}
	validRepetitions   = map[string]struct{}{
		"daily": {}, "weekday": {}, "weekend": {},
		"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {}, "friday": {}, "saturday": {}, "sunday": {},
	}
	validScheduleTasks = map[string]struct{}{"count": {}, "pause": {}, "resume": {}}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateRunners(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkers() error {
	w := c.Workers
	if w.Count < 0 {
		return errors.New("workers.count must be zero or positive")
	}
	if err := ensurePositive("workers.tick_interval_millis", w.TickIntervalMillis); err != nil {
		return err
	}
	if err := ensurePositive("workers.handoff_wait_millis", w.HandoffWaitMillis); err != nil {
		return err
	}
	if err := ensurePositive("workers.idle_poll_millis", w.IdlePollMillis); err != nil {
		return err
	}
	if w.LogTailLines < 20 {
		return errors.New("workers.log_tail_lines must be at least 20")
	}
	if w.SubprocessTimeoutSeconds < 0 {
		return errors.New("workers.subprocess_timeout_seconds must be zero or positive")
	}
	if w.SubprocessNice < 0 || w.SubprocessNice > 19 {
		return errors.New("workers.subprocess_nice must be between 0 and 19")
	}
	if err := ensurePositive("workers.move_retry_delay_millis", w.MoveRetryDelayMillis); err != nil {
		return err
	}
	for i, s := range w.Schedules {
		if err := validateSchedule(s); err != nil {
			return fmt.Errorf("workers.schedules[%d]: %w", i, err)
		}
	}
	return nil
}

func validateSchedule(s Schedule) error {
	if _, ok := validRepetitions[s.Repetition]; !ok {
		return fmt.Errorf("unsupported repetition %q", s.Repetition)
	}
	if _, ok := validScheduleTasks[s.Task]; !ok {
		return fmt.Errorf("unsupported task %q (expected count, pause or resume)", s.Task)
	}
	if _, _, err := ParseClock(s.Time); err != nil {
		return err
	}
	if s.Task == "count" && s.WorkerCount < 0 {
		return errors.New("worker_count must be zero or positive")
	}
	return nil
}

func (c *Config) validateRunners() error {
	seen := make(map[string]struct{}, len(c.Runners))
	for i, r := range c.Runners {
		if r.ID == "" {
			return fmt.Errorf("runners[%d].id must be set", i)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("runners[%d].id %q is duplicated", i, r.ID)
		}
		seen[r.ID] = struct{}{}
		if _, ok := validRunnerTypes[r.Type]; !ok {
			return fmt.Errorf("runners[%d].type %q is not supported", i, r.Type)
		}
		if _, ok := validProgressKinds[r.Progress]; !ok {
			return fmt.Errorf("runners[%d].progress %q is not supported", i, r.Progress)
		}
		if r.Type == "command" && r.Command == "" {
			return fmt.Errorf("runners[%d].command must be set for command runners", i)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.WebhookURL != "" && !strings.HasPrefix(n.WebhookURL, "http://") && !strings.HasPrefix(n.WebhookURL, "https://") {
		return errors.New("notifications.webhook_url must be an http(s) URL")
	}
	if err := ensurePositive("notifications.timeout_seconds", n.TimeoutSeconds); err != nil {
		return err
	}
	if n.RetryMax < 0 {
		return errors.New("notifications.retry_max must be zero or positive")
	}
	return nil
}

func (c *Config) validateIngest() error {
	r := c.Ingest.Redis
	if !r.Enabled {
		return nil
	}
	if r.Addr == "" {
		return errors.New("ingest.redis.addr must be set when ingest.redis.enabled is true")
	}
	if r.Stream == "" || r.Group == "" || r.Consumer == "" {
		return errors.New("ingest.redis.stream, group and consumer must be set when ingest.redis.enabled is true")
	}
	if err := ensurePositive("ingest.redis.block_seconds", r.BlockSeconds); err != nil {
		return err
	}
	return nil
}

func ensurePositive(name string, value int) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}

// ParseClock parses an HH:MM wall-clock value.
func ParseClock(value string) (int, int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d:%d", &hour, &minute); err != nil {
		return 0, 0, fmt.Errorf("time %q must be HH:MM", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q is out of range", value)
	}
	return hour, minute, nil
}
