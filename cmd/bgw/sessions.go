package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Short:   "List transfer sessions on the gateway",
	GroupID: "transfers",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := gatewayClient.ListSessions(context.Background())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if jsonOutput {
			printSessionListJSON(sessions)
		} else {
			printSessionListTable(sessions)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status <session-id>",
	Short:   "Show a transfer session",
	GroupID: "transfers",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := gatewayClient.GetSession(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetching session: %w", err)
		}
		if jsonOutput {
			printSessionJSON(sess)
		} else {
			printSessionTable(sess)
		}
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:     "audit <session-id>",
	Short:   "Show a session's audit trail",
	GroupID: "transfers",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := gatewayClient.GetAudit(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetching audit trail: %w", err)
		}
		if jsonOutput {
			printAuditJSON(records)
		} else {
			printAuditTable(records)
		}
		return nil
	},
}

var rollbackReason string

var rollbackCmd = &cobra.Command{
	Use:     "rollback <session-id>",
	Short:   "Roll back a stuck transfer session",
	GroupID: "transfers",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := gatewayClient.Rollback(context.Background(), args[0], rollbackReason)
		if err != nil {
			return fmt.Errorf("rolling back: %w", err)
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
	rollbackCmd.Flags().StringVar(&rollbackReason, "reason", "operator requested", "reason recorded with the rollback")
}
