package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/config"
	"scribe/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the transcription queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued tasks, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				tasks, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(tasks))
				for _, task := range tasks {
					rows = append(rows, []string{
						strconv.FormatInt(task.ID, 10),
						task.State(),
						task.Owner,
						task.Source(),
						task.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "State", "Owner", "Source", "Created"}, rows))
				return nil
			})
		},
	}
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var showText bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single task in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				task, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Task #%d\n", task.ID)
				fmt.Fprintf(out, "  State:    %s\n", task.State())
				fmt.Fprintf(out, "  Owner:    %s\n", task.Owner)
				fmt.Fprintf(out, "  Source:   %s\n", task.Source())
				fmt.Fprintf(out, "  Created:  %s\n", task.CreatedAt.Local().Format(time.RFC1123))
				if task.StartedAt != nil {
					fmt.Fprintf(out, "  Started:  %s\n", task.StartedAt.Local().Format(time.RFC1123))
				}
				if task.FinishedAt != nil {
					fmt.Fprintf(out, "  Finished: %s\n", task.FinishedAt.Local().Format(time.RFC1123))
				}
				if task.Attempts > 0 {
					fmt.Fprintf(out, "  Attempts: %d\n", task.Attempts)
				}
				if task.LastError != "" {
					fmt.Fprintf(out, "  Error:    %s\n", task.LastError)
				}
				if showText && task.ResultText != "" {
					fmt.Fprintf(out, "\n%s\n", task.ResultText)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showText, "text", false, "Print the transcript text as well")
	return cmd
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := store.AggregateStats(cmd.Context())
				if err != nil {
					return err
				}
				pending, err := store.PendingCount(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Pending", strconv.Itoa(pending)},
					{"In flight", strconv.Itoa(stats.InFlight)},
					{"Finished", strconv.Itoa(stats.Finished)},
					{"Total time", stats.TotalDuration.Round(time.Second).String()},
					{"Average time", stats.AvgDuration.Round(time.Second).String()},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows))
				return nil
			})
		},
	}
}
