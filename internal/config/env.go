package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envOverrides lists the settings that may be supplied through REEL_* variables.
// Unset variables leave the file value untouched.
type envOverrides struct {
	DataDir       string `env:"REEL_DATA_DIR"`
	CacheDir      string `env:"REEL_CACHE_DIR"`
	LogDir        string `env:"REEL_LOG_DIR"`
	APIBind       string `env:"REEL_API_BIND"`
	APIToken      string `env:"REEL_API_TOKEN"`
	Workers       *int   `env:"REEL_WORKERS"`
	LogLevel      string `env:"REEL_LOG_LEVEL"`
	LogFormat     string `env:"REEL_LOG_FORMAT"`
	WebhookURL    string `env:"REEL_WEBHOOK_URL"`
	RedisEnabled  *bool  `env:"REEL_REDIS_ENABLED"`
	RedisAddr     string `env:"REEL_REDIS_ADDR"`
	RedisPassword string `env:"REEL_REDIS_PASSWORD"`
	RedisDB       *int   `env:"REEL_REDIS_DB"`
}

func dotEnvCandidates(configPath string) []string {
	candidates := []string{}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	if abs, err := filepath.Abs(".env"); err == nil {
		candidates = append(candidates, abs)
	}
	return candidates
}

// applyEnv overlays REEL_* variables. Values from .env files are used only when
// the process environment does not already define the same key.
func (c *Config) applyEnv(dotEnvPaths ...string) error {
	environment, err := mergedEnvironment(dotEnvPaths)
	if err != nil {
		return err
	}

	var overrides envOverrides
	if err := env.ParseWithOptions(&overrides, env.Options{Environment: environment}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	setString(&c.Paths.DataDir, overrides.DataDir)
	setString(&c.Paths.CacheDir, overrides.CacheDir)
	setString(&c.Paths.LogDir, overrides.LogDir)
	setString(&c.Paths.APIBind, overrides.APIBind)
	setString(&c.Paths.APIToken, overrides.APIToken)
	setString(&c.Logging.Level, overrides.LogLevel)
	setString(&c.Logging.Format, overrides.LogFormat)
	setString(&c.Notifications.WebhookURL, overrides.WebhookURL)
	setString(&c.Ingest.Redis.Addr, overrides.RedisAddr)
	setString(&c.Ingest.Redis.Password, overrides.RedisPassword)
	if overrides.Workers != nil {
		c.Workers.Count = *overrides.Workers
	}
	if overrides.RedisEnabled != nil {
		c.Ingest.Redis.Enabled = *overrides.RedisEnabled
	}
	if overrides.RedisDB != nil {
		c.Ingest.Redis.DB = *overrides.RedisDB
	}
	return nil
}

func mergedEnvironment(dotEnvPaths []string) (map[string]string, error) {
	merged := map[string]string{}
	seen := map[string]struct{}{}
	for _, path := range dotEnvPaths {
		if _, ok := seen[path]; ok || strings.TrimSpace(path) == "" {
			continue
		}
		seen[path] = struct{}{}
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for k, v := range values {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
	}
	for k, v := range env.ToMap(os.Environ()) {
		merged[k] = v
	}
	return merged, nil
}

func setString(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = value
	}
}
