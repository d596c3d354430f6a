package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/noah-isme/civica-api/internal/models"
	"github.com/noah-isme/civica-api/internal/service"
	"github.com/noah-isme/civica-api/pkg/config"
	"github.com/noah-isme/civica-api/pkg/pubsub"
)

// NotificationsCmd returns the notifications command group.
func NotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Inspect the notification fan-out channel",
	}
	cmd.AddCommand(notificationsTailCmd())
	return cmd
}

func notificationsTailCmd() *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print notification intents as the API publishes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if channel == "" {
				channel = cfg.Notifications.Channel
			}
			client, err := pubsub.NewRedis(cfg.Redis)
			if err != nil {
				return fmt.Errorf("connect to redis %s:%d: %w", cfg.Redis.Host, cfg.Redis.Port, err)
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Listening on %s (Ctrl+C to stop)\n", channel)
			return pubsub.Subscribe(cmd.Context(), client, channel, func(payload []byte) error {
				printIntent(out, payload)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Channel to subscribe to (default: NOTIFICATIONS_CHANNEL)")
	return cmd
}

func printIntent(out io.Writer, payload []byte) {
	var msg service.PublishedIntent
	if err := json.Unmarshal(payload, &msg); err != nil {
		fmt.Fprintf(out, "%s %s\n", color.New(color.FgRed).Sprint("UNREADABLE"), string(payload))
		return
	}
	fmt.Fprintf(out, "%s %s %s -> %s [%s]\n",
		msg.OccurredAt.Format("15:04:05"),
		intentColor(msg.Type).Sprintf("%-24s", msg.Type),
		msg.Title,
		recipientLabel(msg.Recipient),
		strings.Join(msg.Recipients, ","),
	)
}

func recipientLabel(r models.Recipient) string {
	if r.ID == "" {
		return string(r.Kind)
	}
	return string(r.Kind) + ":" + r.ID
}

func intentColor(kind models.NotificationType) *color.Color {
	if strings.Contains(string(kind), "escalat") {
		return color.New(color.FgRed)
	}
	return color.New(color.FgCyan)
}
