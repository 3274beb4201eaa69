package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Schedule changes the worker pool at a fixed wall-clock minute.
type Schedule struct {
	Repetition  string `toml:"repetition"`
	Time        string `toml:"time"`
	Task        string `toml:"task"`
	WorkerCount int    `toml:"worker_count"`
}

// Workers contains worker pool sizing and timing.
type Workers struct {
	Count                    int        `toml:"count"`
	TickIntervalMillis       int        `toml:"tick_interval_millis"`
	HandoffWaitMillis        int        `toml:"handoff_wait_millis"`
	IdlePollMillis           int        `toml:"idle_poll_millis"`
	LogTailLines             int        `toml:"log_tail_lines"`
	SubprocessTimeoutSeconds int        `toml:"subprocess_timeout_seconds"`
	SubprocessNice           int        `toml:"subprocess_nice"`
	MoveRetryDelayMillis     int        `toml:"move_retry_delay_millis"`
	Libraries                []int64    `toml:"libraries"`
	Schedules                []Schedule `toml:"schedules"`
}

// Runner describes one pipeline stage.
type Runner struct {
	ID        string   `toml:"id"`
	Name      string   `toml:"name"`
	Type      string   `toml:"type"`
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	Extension string   `toml:"extension"`
	Passes    int      `toml:"passes"`
	Progress  string   `toml:"progress"`
	Enabled   bool     `toml:"enabled"`
	Libraries []int64  `toml:"libraries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for task result webhooks.
type Notifications struct {
	WebhookURL     string `toml:"webhook_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryMax       int    `toml:"retry_max"`
	OnSuccess      bool   `toml:"on_success"`
	OnFailure      bool   `toml:"on_failure"`
}

// Redis contains the optional remote ingestion stream settings.
type Redis struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	Stream       string `toml:"stream"`
	Group        string `toml:"group"`
	Consumer     string `toml:"consumer"`
	BlockSeconds int    `toml:"block_seconds"`
	LibraryID    int64  `toml:"library_id"`
}

// Ingest groups the producers that feed the task store from outside the host.
type Ingest struct {
	Redis Redis `toml:"redis"`
}

// Config encapsulates all configuration values for reel.
//
// Configuration sections by subsystem:
//   - Paths: data, cache and log directories plus the API bind address
//   - Workers: pool size, scheduler timing and event schedules
//   - Runners: ordered pipeline stages
//   - Logging: log format, level, and retention
//   - Notifications: task result webhook
//   - Ingest: remote task producers
type Config struct {
	Paths         Paths         `toml:"paths"`
	Workers       Workers       `toml:"workers"`
	Runners       []Runner      `toml:"runners"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Ingest        Ingest        `toml:"ingest"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reel/config.toml")
}

// Load locates, parses, and validates a configuration file. Environment
// overrides (including a .env file next to the config) are applied after the
// file is decoded. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(dotEnvCandidates(resolvedPath)...); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.CacheDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the task store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "reel.db")
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "reel.sock")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reel.lock")
}

// LogPath returns the daemon log file location.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "reel.log")
}

// EnabledRunners returns the configured runners that are switched on, in order.
func (c *Config) EnabledRunners() []Runner {
	out := make([]Runner, 0, len(c.Runners))
	for _, r := range c.Runners {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
