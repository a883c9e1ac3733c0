package handlers

import (
	"context"
	"fmt"
	"os"

	"curateai/internal/messaging"

	"github.com/spf13/cobra"
)

// NewNotifyTestCmd creates the webhook verification command.
func NewNotifyTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test message to the configured Slack webhook",
		Run: func(_ *cobra.Command, _ []string) {
			notifier := messaging.NewNotifier(cfg.Messaging.SlackWebhookURL)
			if !notifier.Configured() {
				fmt.Fprintln(os.Stderr, "No Slack webhook configured; set SLACK_WEBHOOK_URL or messaging.slack_webhook_url")
				os.Exit(1)
			}

			if err := notifier.SendTest(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Webhook test failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Webhook test message sent.")
		},
	}
}
