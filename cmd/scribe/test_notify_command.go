package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/logging"
	"scribe/internal/notifications"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification using the configured mail settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Mail.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Mail is disabled; nothing sent")
				return nil
			}
			svc := notifications.NewService(cfg, logging.NewNop())
			if err := svc.TestNotification(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent to %s\n", cfg.Mail.From)
			return nil
		},
	}
}
