package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fazzatti/cacti/internal/model"
	"github.com/spf13/cobra"
)

var (
	transferSource    string
	transferRecipient string
	transferServer    string
	transferSession   string
	transferRetries   int
	transferTimeout   time.Duration
	transferNoWait    bool
)

var transferCmd = &cobra.Command{
	Use:     "transfer",
	Short:   "Initiate a cross-chain asset transfer",
	GroupID: "transfers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if transferSource == "" {
			return fmt.Errorf("--source is required")
		}
		if transferRecipient == "" {
			return fmt.Errorf("--recipient is required")
		}
		if transferServer == "" {
			return fmt.Errorf("--server is required")
		}

		req := &model.TransferRequest{
			SessionID:              transferSession,
			SourceLedgerAssetID:    transferSource,
			RecipientLedgerAssetID: transferRecipient,
			MaxRetries:             transferRetries,
			MaxTimeout:             transferTimeout,
			ServerGatewayConfiguration: model.GatewayEndpoint{
				APIHost: transferServer,
			},
		}

		sess, err := gatewayClient.InitiateTransfer(context.Background(), req, !transferNoWait)
		if err != nil {
			return fmt.Errorf("initiating transfer: %w", err)
		}

		if jsonOutput {
			printSessionJSON(sess)
		} else {
			printSessionTable(sess)
		}
		return nil
	},
}

func init() {
	transferCmd.Flags().StringVar(&transferSource, "source", "", "source-chain asset reference id")
	transferCmd.Flags().StringVar(&transferRecipient, "recipient", "", "destination-chain asset reference id")
	transferCmd.Flags().StringVar(&transferServer, "server", "", "counterparty gateway URL")
	transferCmd.Flags().StringVar(&transferSession, "session", "", "session id (generated when empty)")
	transferCmd.Flags().IntVar(&transferRetries, "retries", 3, "retry budget per protocol phase")
	transferCmd.Flags().DurationVar(&transferTimeout, "timeout", 60*time.Second, "overall deadline per protocol phase")
	transferCmd.Flags().BoolVar(&transferNoWait, "no-wait", false, "return immediately after the session is created")
}
