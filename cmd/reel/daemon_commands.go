package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"reel/internal/api"
	"reel/internal/daemonctl"
	"reel/internal/daemonrun"
	"reel/internal/ipc"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon process commands",
	}

	var logLevel string
	var development bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
			})
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	runCmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log output")
	daemonCmd.AddCommand(runCmd)
	return daemonCmd
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonctl.LaunchOptions{
				ConfigPath: ctx.configPath,
				LogLevel:   logLevel,
			}, 10*time.Second)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.AlreadyRunning {
				fmt.Fprintln(out, "Daemon already running")
				return nil
			}
			fmt.Fprintf(out, "Daemon started (pid %d)\n", result.PID)
			return nil
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon, terminating running workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), daemonrun.PIDPath(cfg), 15*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(out, "Daemon did not exit in time; killed pid %d\n", result.PID)
				return nil
			}
			fmt.Fprintln(out, "Daemon stopped")
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show scheduler, worker and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Status)
				}
				renderStatus(cmd, resp.Status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	color := shouldColorize(out)
	sched := status.Scheduler

	sectionHeader(out, "Daemon", color)
	statusLine(out, "Running", status.Running, fmt.Sprintf("pid %d", status.PID), color)
	statusLine(out, "Scheduler", sched.Running, sched.LastError, color)
	statusLine(out, "Runners", !sched.RunnersBlocked, "", color)
	if sched.Host != nil {
		fmt.Fprintf(out, "  %-20s %.1f%% cpu, %.1f%% memory\n", "Host:", sched.Host.CPUPercent, sched.Host.MemoryPercent)
	}
	fmt.Fprintln(out)

	if len(status.Runners) > 0 {
		sectionHeader(out, "Runners", color)
		for _, r := range status.Runners {
			statusLine(out, r.ID, r.Ready, r.Detail, color)
		}
		fmt.Fprintln(out)
	}
	if len(status.Dependencies) > 0 {
		sectionHeader(out, "Dependencies", color)
		for _, dep := range status.Dependencies {
			statusLine(out, dep.Name, dep.Available, dep.Detail, color)
		}
		fmt.Fprintln(out)
	}

	sectionHeader(out, fmt.Sprintf("Workers (%d/%d)", len(sched.Workers), sched.TargetWorkers), color)
	fmt.Fprint(out, workerTable(sched.Workers))
	fmt.Fprintln(out)

	sectionHeader(out, "Queue", color)
	keys := make([]string, 0, len(sched.QueueStats))
	for k := range sched.QueueStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{humanize(k), fmt.Sprint(sched.QueueStats[k])})
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, 1))
}
