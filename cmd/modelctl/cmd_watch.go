package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"metabolic-model-be/pkg/events"
	pktNats "metabolic-model-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		url     string
		subject string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the model event stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = os.Getenv("NATS_URL")
			}
			if url == "" {
				return fmt.Errorf("no NATS server: pass --nats or set NATS_URL")
			}
			sub, err := pktNats.NewSubscriber(url, nil)
			if err != nil {
				return err
			}
			defer sub.Close()

			ctx := cmd.Context()
			if err := sub.Subscribe(ctx, subject, "", printEvent); err != nil {
				return err
			}
			color.Cyan("Watching %s on %s (Ctrl+C to stop)", subject, url)
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "nats", "", "NATS server URL (defaults to NATS_URL)")
	cmd.Flags().StringVar(&subject, "subject", "models.>", "subject filter")
	return cmd
}

func printEvent(_ context.Context, e events.Event) error {
	payload, err := json.Marshal(e.Payload())
	if err != nil {
		return err
	}
	label := color.New(color.FgYellow, color.Bold).SprintFunc()
	if e.EventType() == events.ModelSimulated {
		label = color.New(color.FgGreen, color.Bold).SprintFunc()
	}
	fmt.Printf("%s %s %s\n", e.Timestamp().Format("15:04:05"), label(e.EventType()), payload)
	return nil
}
