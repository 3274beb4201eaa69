package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkers()
	c.normalizeRunners()
	c.normalizeLogging()
	c.normalizeIngest()
	c.Notifications.WebhookURL = strings.TrimSpace(c.Notifications.WebhookURL)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeWorkers() {
	if c.Workers.TickIntervalMillis == 0 {
		c.Workers.TickIntervalMillis = defaultTickInterval
	}
	if c.Workers.HandoffWaitMillis == 0 {
		c.Workers.HandoffWaitMillis = defaultHandoffWait
	}
	if c.Workers.IdlePollMillis == 0 {
		c.Workers.IdlePollMillis = defaultIdlePoll
	}
	if c.Workers.LogTailLines == 0 {
		c.Workers.LogTailLines = defaultLogTailLines
	}
	if c.Workers.MoveRetryDelayMillis == 0 {
		c.Workers.MoveRetryDelayMillis = defaultMoveRetryDelay
	}
	for i := range c.Workers.Schedules {
		s := &c.Workers.Schedules[i]
		s.Repetition = strings.ToLower(strings.TrimSpace(s.Repetition))
		s.Task = strings.ToLower(strings.TrimSpace(s.Task))
		s.Time = strings.TrimSpace(s.Time)
	}
}

func (c *Config) normalizeRunners() {
	for i := range c.Runners {
		r := &c.Runners[i]
		r.ID = strings.TrimSpace(r.ID)
		r.Type = strings.ToLower(strings.TrimSpace(r.Type))
		if r.Type == "" {
			r.Type = "command"
		}
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			r.Name = r.ID
		}
		r.Command = strings.TrimSpace(r.Command)
		r.Progress = strings.ToLower(strings.TrimSpace(r.Progress))
		if r.Extension = strings.TrimSpace(r.Extension); r.Extension != "" && !strings.HasPrefix(r.Extension, ".") {
			r.Extension = "." + r.Extension
		}
		if r.Passes <= 0 {
			r.Passes = 1
		}
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

func (c *Config) normalizeIngest() {
	r := &c.Ingest.Redis
	r.Addr = strings.TrimSpace(r.Addr)
	r.Stream = strings.TrimSpace(r.Stream)
	r.Group = strings.TrimSpace(r.Group)
	r.Consumer = strings.TrimSpace(r.Consumer)
	if r.LibraryID == 0 {
		r.LibraryID = defaultLibraryID
	}
}
