package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fictionbridge/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Publish a test notification to the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if resp == nil {
					resp = &ipc.TestNotificationResponse{}
				}
				if asJSON {
					if jsonErr := writeJSON(cmd, resp); jsonErr != nil {
						return jsonErr
					}
					return err
				}
				message := resp.Message
				if message == "" {
					message = "Notification not sent"
					if resp.Sent {
						message = "Test notification sent"
					}
				}
				if err != nil {
					return fmt.Errorf("%s: %w", message, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output the result as JSON")
	return cmd
}
