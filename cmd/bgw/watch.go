package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/fazzatti/cacti/internal/events"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var (
	watchNATSURL string
	watchTopic   string
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream transfer events from the gateway's event bus",
	GroupID: "transfers",
	// Override PersistentPreRunE: watch talks to NATS, not the HTTP API.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchNATSURL == "" {
			return fmt.Errorf("no NATS URL: set --nats or BRIDGE_NATS_URL")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(watchNATSURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(watchTopic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", watchTopic, err)
		}
		defer cancel()

		fmt.Fprintf(os.Stderr, "watching %s on %s (ctrl-c to stop)\n", watchTopic, watchNATSURL)
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				if jsonOutput {
					fmt.Println(string(msg))
				} else {
					fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), msg)
				}
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchNATSURL, "nats", os.Getenv("BRIDGE_NATS_URL"), "NATS server URL")
	watchCmd.Flags().StringVar(&watchTopic, "topic", "bridge.>", "subject filter to watch")
}
