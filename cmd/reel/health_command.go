package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reel/internal/ipc"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check database and queue health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				db, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				queueHealth, err := client.QueueHealth()
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"database": db,
						"queue":    queueHealth,
					})
				}
				renderHealth(cmd, db, queueHealth)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func renderHealth(cmd *cobra.Command, db *ipc.DatabaseHealthResponse, q *ipc.QueueHealthResponse) {
	out := cmd.OutOrStdout()
	color := shouldColorize(out)

	sectionHeader(out, "Database", color)
	statusLine(out, "Path", db.DatabaseExists, db.DBPath, color)
	statusLine(out, "Readable", db.DatabaseReadable, "", color)
	statusLine(out, "Tasks table", db.TableExists, fmt.Sprintf("schema v%d", db.SchemaVersion), color)
	statusLine(out, "Integrity", db.IntegrityCheck == "ok", db.IntegrityCheck, color)
	if db.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", db.Error)
	}

	fmt.Fprintln(out)
	sectionHeader(out, "Queue", color)
	rows := [][]string{
		{"Total", fmt.Sprint(q.Total)},
		{"Pending", fmt.Sprint(q.Pending)},
		{"In progress", fmt.Sprint(q.InProgress)},
		{"Succeeded", fmt.Sprint(q.Succeeded)},
		{"Failed", fmt.Sprint(q.Failed)},
	}
	fmt.Fprint(out, renderTable([]string{"Tasks", "Count"}, rows, 1))
}

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.Sent {
					fmt.Fprintf(out, "Notification not sent: %s\n", resp.Message)
					return nil
				}
				fmt.Fprintln(out, "Test notification sent")
				return nil
			})
		},
	}
}
