package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reel/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "reel")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "reel.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Workers.Count != 1 {
		t.Fatalf("expected one worker by default, got %d", cfg.Workers.Count)
	}
	if cfg.Workers.LogTailLines != 300 {
		t.Fatalf("expected 300 tail lines, got %d", cfg.Workers.LogTailLines)
	}
	if cfg.Workers.SubprocessTimeout() != 0 {
		t.Fatal("expected watchdog disabled by default")
	}
	if len(cfg.Runners) != 0 {
		t.Fatalf("expected no default runners, got %d", len(cfg.Runners))
	}
}

func TestLoadCustomConfigNormalizesRunners(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
data_dir = "~/reel-data"

[workers]
count = 3

[[runners]]
id = "remux"
command = "ffmpeg"
args = ["-i", "{file_in}", "{file_out}"]
extension = "mkv"
enabled = true

[[runners]]
id = "noop"
type = "copy"
enabled = false
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "reel-data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Paths.LogDir == "" {
		t.Fatal("expected log dir to be filled")
	}
	if cfg.Workers.Count != 3 {
		t.Fatalf("expected 3 workers, got %d", cfg.Workers.Count)
	}
	runner := cfg.Runners[0]
	if runner.Type != "command" || runner.Name != "remux" || runner.Extension != ".mkv" || runner.Passes != 1 {
		t.Fatalf("unexpected runner normalization: %+v", runner)
	}
	enabled := cfg.EnabledRunners()
	if len(enabled) != 1 || enabled[0].ID != "remux" {
		t.Fatalf("unexpected enabled runners: %+v", enabled)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[workers]\ncount = 2\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REEL_WORKERS=5\nREEL_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("REEL_LOG_LEVEL", "warn")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Workers.Count != 5 {
		t.Fatalf("expected .env worker count, got %d", cfg.Workers.Count)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected process env to win over .env, got %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative workers", func(c *config.Config) { c.Workers.Count = -1 }, "workers.count"},
		{"short tail", func(c *config.Config) { c.Workers.LogTailLines = 5 }, "log_tail_lines"},
		{"duplicate runner", func(c *config.Config) {
			c.Runners = []config.Runner{{ID: "a", Type: "copy"}, {ID: "a", Type: "copy"}}
		}, "duplicated"},
		{"unknown runner type", func(c *config.Config) {
			c.Runners = []config.Runner{{ID: "a", Type: "python"}}
		}, "not supported"},
		{"command without binary", func(c *config.Config) {
			c.Runners = []config.Runner{{ID: "a", Type: "command"}}
		}, "command must be set"},
		{"bad schedule time", func(c *config.Config) {
			c.Workers.Schedules = []config.Schedule{{Repetition: "daily", Task: "pause", Time: "25:00"}}
		}, "out of range"},
		{"bad schedule task", func(c *config.Config) {
			c.Workers.Schedules = []config.Schedule{{Repetition: "daily", Task: "sleep", Time: "01:00"}}
		}, "unsupported task"},
		{"redis without addr", func(c *config.Config) {
			c.Ingest.Redis.Enabled = true
			c.Ingest.Redis.Addr = ""
		}, "ingest.redis.addr"},
		{"webhook scheme", func(c *config.Config) { c.Notifications.WebhookURL = "ftp://x" }, "webhook_url"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %v", tc.want, err)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := config.ParseClock("07:45")
	if err != nil || h != 7 || m != 45 {
		t.Fatalf("unexpected parse: %d %d %v", h, m, err)
	}
	if _, _, err := config.ParseClock("noon"); err == nil {
		t.Fatal("expected error for malformed clock")
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if len(decoded.Runners) != 2 {
		t.Fatalf("expected two sample runners, got %d", len(decoded.Runners))
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}
