package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"reel/internal/config"
	"reel/internal/fileutil"
	"reel/internal/services"
)

// FromConfig builds the runner described by a config entry.
func FromConfig(cfg config.Runner) (Runner, error) {
	switch cfg.Type {
	case "command", "":
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "runner", "build", fmt.Sprintf("runner %q has no command", cfg.ID), nil)
		}
		return &commandRunner{cfg: cfg}, nil
	case "drapto":
		if cfg.Command == "" {
			cfg.Command = "drapto"
		}
		return &draptoRunner{cfg: cfg}, nil
	case "copy":
		return &copyRunner{cfg: cfg}, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "runner", "build", fmt.Sprintf("runner %q has unsupported type %q", cfg.ID, cfg.Type), nil)
	}
}

// applyOutput swaps FileOut's extension when the runner declares one and
// requests another pass while passes remain.
func applyOutput(cfg config.Runner, rc *Context) {
	if cfg.Extension != "" {
		rc.FileOut = strings.TrimSuffix(rc.FileOut, filepath.Ext(rc.FileOut)) + cfg.Extension
	}
	rc.Repeat = rc.Pass < cfg.Passes
}

// expandArgs substitutes the supported placeholders in each argument.
func expandArgs(args []string, rc *Context) []string {
	replacer := strings.NewReplacer(
		"{file_in}", rc.FileIn,
		"{file_out}", rc.FileOut,
		"{original}", rc.OriginalFilePath,
		"{library_id}", strconv.FormatInt(rc.LibraryID, 10),
		"{pass}", strconv.Itoa(rc.Pass),
	)
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = replacer.Replace(arg)
	}
	return out
}

type commandRunner struct {
	cfg config.Runner
}

func (r *commandRunner) ID() string { return r.cfg.ID }
func (r *commandRunner) Name() string { return r.cfg.Name }

func (r *commandRunner) Run(_ context.Context, rc *Context) error {
	applyOutput(r.cfg, rc)
	rc.ExecCommand = append([]string{r.cfg.Command}, expandArgs(r.cfg.Args, rc)...)
	rc.ProgressParser = NewProgressParser(r.cfg.Progress)
	return nil
}

// draptoRunner drives the drapto CLI with its JSON progress stream. Extra
// configured args are appended after the defaults.
type draptoRunner struct {
	cfg config.Runner
}

func (r *draptoRunner) ID() string { return r.cfg.ID }
func (r *draptoRunner) Name() string { return r.cfg.Name }

func (r *draptoRunner) Run(_ context.Context, rc *Context) error {
	cfg := r.cfg
	if cfg.Extension == "" {
		cfg.Extension = ".mkv"
	}
	applyOutput(cfg, rc)
	rc.ExecCommand = append([]string{
		cfg.Command, "encode",
		"--input", rc.FileIn,
		"--output", rc.FileOut,
		"--responsive",
		"--no-log",
		"--progress-json",
	}, expandArgs(cfg.Args, rc)...)
	parser := cfg.Progress
	if parser == "" {
		parser = "drapto"
	}
	rc.ProgressParser = NewProgressParser(parser)
	return nil
}

// copyRunner writes file_in to file_out in-process without requesting a
// command.
type copyRunner struct {
	cfg config.Runner
}

func (r *copyRunner) ID() string { return r.cfg.ID }
func (r *copyRunner) Name() string { return r.cfg.Name }

func (r *copyRunner) Run(ctx context.Context, rc *Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	applyOutput(r.cfg, rc)
	if rc.FileIn == "" || rc.FileOut == "" {
		return errors.New("copy runner needs file_in and file_out")
	}
	if err := os.MkdirAll(filepath.Dir(rc.FileOut), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := fileutil.Copy(rc.FileIn, rc.FileOut); err != nil {
		return services.Wrap(services.ErrExternalTool, "runner", "copy", "copy failed", err)
	}
	return nil
}
