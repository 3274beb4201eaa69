package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"reel/internal/api"
	"reel/internal/ipc"
)

func newWorkersCommand(ctx *commandContext) *cobra.Command {
	workersCmd := &cobra.Command{
		Use:     "workers",
		Aliases: []string{"worker"},
		Short:   "Inspect and control workers",
	}

	var jsonOut bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List workers and their current task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Status.Scheduler.Workers)
				}
				fmt.Fprint(cmd.OutOrStdout(), workerTable(resp.Status.Scheduler.Workers))
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	workersCmd.AddCommand(listCmd)

	workersCmd.AddCommand(newWorkerActionCommand(ctx, "pause", "Pause a worker and its running command", (*ipc.Client).WorkerPause))
	workersCmd.AddCommand(newWorkerActionCommand(ctx, "resume", "Resume a paused worker", (*ipc.Client).WorkerResume))
	workersCmd.AddCommand(newWorkerActionCommand(ctx, "terminate", "Retire a worker after its current task", (*ipc.Client).WorkerTerminate))

	workersCmd.AddCommand(&cobra.Command{
		Use:   "count <n>",
		Short: "Set the target number of workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid worker count %q", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.WorkerCount(n)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Target workers set to %d\n", resp.Count)
				return nil
			})
		},
	})
	return workersCmd
}

type workerAction func(*ipc.Client, string) (*ipc.WorkerResponse, error)

func newWorkerActionCommand(ctx *commandContext, name, short string, action workerAction) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   name + " [worker-id]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("specify a worker id or --all")
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := action(client, id); err != nil {
					return err
				}
				target := "all workers"
				if id != "" {
					target = "worker " + id
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", humanize(name), target)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Apply to every worker")
	return cmd
}

func workerTable(workers []api.Worker) string {
	if len(workers) == 0 {
		return "No workers\n"
	}
	rows := make([][]string, 0, len(workers))
	for _, w := range workers {
		state := humanize(w.State)
		switch {
		case w.Redundant:
			state += " (retiring)"
		case w.Paused:
			state += " (paused)"
		}
		task, progress, file := "-", "-", "-"
		if w.TaskID != 0 {
			task = strconv.FormatInt(w.TaskID, 10)
			progress = fmt.Sprintf("%s pass %d %.0f%% %s", w.Runner, w.Pass, w.Subprocess.Percent, formatSeconds(w.Subprocess.ElapsedSeconds))
			file = filepath.Base(w.CurrentFile)
		}
		rows = append(rows, []string{w.ID, state, task, progress, file})
	}
	return renderTable([]string{"Worker", "State", "Task", "Progress", "File"}, rows)
}
