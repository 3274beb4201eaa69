package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/api"
	"reel/internal/ipc"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	tasksCmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "queue"},
		Short:   "Inspect and manage queued tasks",
	}
	tasksCmd.AddCommand(newTaskListCommand(ctx))
	tasksCmd.AddCommand(newTaskAddCommand(ctx))
	tasksCmd.AddCommand(newTaskShowCommand(ctx))
	tasksCmd.AddCommand(newTaskReorderCommand(ctx))
	tasksCmd.AddCommand(newTaskRemoveCommand(ctx))
	return tasksCmd
}

func newTaskListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskList(statuses, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Tasks)
				}
				out := cmd.OutOrStdout()
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(out, "No tasks")
					return nil
				}
				fmt.Fprint(out, taskTable(resp.Tasks))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, in_progress, processed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of tasks to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func taskTable(tasks []api.Task) string {
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			strconv.FormatInt(t.Priority, 10),
			humanize(t.Status),
			taskOutcome(t.Success),
			t.ProcessedBy,
			filepath.Base(t.SourcePath),
		})
	}
	return renderTable([]string{"ID", "Priority", "Status", "Result", "Worker", "Source"}, rows, 0, 1)
}

func newTaskAddCommand(ctx *commandContext) *cobra.Command {
	var library int64
	var priority int64
	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Queue local files for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()
				var failed int
				for _, arg := range args {
					path, err := filepath.Abs(arg)
					if err != nil {
						return fmt.Errorf("resolve %s: %w", arg, err)
					}
					req := ipc.TaskAddRequest{SourcePath: path, LibraryID: library}
					if cmd.Flags().Changed("priority") {
						req.Priority = &priority
					}
					resp, err := client.TaskAdd(req)
					if err != nil {
						failed++
						fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
						continue
					}
					fmt.Fprintf(out, "Queued task %d: %s\n", resp.Task.ID, resp.Task.SourcePath)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d files could not be queued", failed, len(args))
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&library, "library", 0, "Library id (defaults to 1)")
	cmd.Flags().Int64Var(&priority, "priority", 0, "Explicit priority; higher runs first")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task including its log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskDescribe(id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp.Task)
				}
				t := resp.Task
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Task %d\n", t.ID)
				fmt.Fprintf(out, "  %-12s %s\n", "Source:", t.SourcePath)
				fmt.Fprintf(out, "  %-12s %s\n", "Cache:", t.CachePath)
				fmt.Fprintf(out, "  %-12s %s (%s)\n", "Status:", humanize(t.Status), taskOutcome(t.Success))
				fmt.Fprintf(out, "  %-12s %d\n", "Priority:", t.Priority)
				fmt.Fprintf(out, "  %-12s %d (%s)\n", "Library:", t.LibraryID, t.Kind)
				if t.ProcessedBy != "" {
					fmt.Fprintf(out, "  %-12s %s\n", "Worker:", t.ProcessedBy)
				}
				if t.StartTime != "" {
					fmt.Fprintf(out, "  %-12s %s\n", "Started:", t.StartTime)
				}
				if t.FinishTime != "" {
					fmt.Fprintf(out, "  %-12s %s\n", "Finished:", t.FinishTime)
				}
				if strings.TrimSpace(t.Log) != "" {
					fmt.Fprintln(out)
					fmt.Fprintln(out, strings.TrimRight(t.Log, "\n"))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newTaskReorderCommand(ctx *commandContext) *cobra.Command {
	var bottom bool
	cmd := &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Move pending tasks to the top (or bottom) of the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseTaskID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			position := "top"
			if bottom {
				position = "bottom"
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TaskReorder(ids, position)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %d task(s) to the %s\n", resp.Updated, position)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&bottom, "bottom", false, "Move to the bottom instead of the top")
	return cmd
}

func newTaskRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a processed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.TaskRemove(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed task %d\n", id)
				return nil
			})
		},
	}
}

func parseTaskID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", value)
	}
	return id, nil
}
