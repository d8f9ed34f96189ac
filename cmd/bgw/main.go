// Command bgw runs a cross-chain bridge gateway and is its CLI client.
package main

import (
	"fmt"
	"os"

	"github.com/fazzatti/cacti/internal/transport"
	"github.com/fazzatti/cacti/internal/ui"
	"github.com/spf13/cobra"
)

var (
	gatewayURL string
	authToken  string
	jsonOutput bool

	gatewayClient transport.GatewayClient
)

func defaultGatewayURL() string {
	if s := os.Getenv("BRIDGE_GATEWAY_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:   "bgw <command>",
	Short: "Cross-chain bridge gateway",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		gatewayClient = transport.NewHTTPClient(gatewayURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if gatewayClient != nil {
			gatewayClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&gatewayURL, "gateway", defaultGatewayURL(), "gateway API URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("BRIDGE_AUTH_TOKEN"), "bearer token for the gateway API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "transfers", Title: "Transfers:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)
	cobra.EnableCommandSorting = false

	// Transfers
	rootCmd.AddCommand(transferCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(watchCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if !ui.ShouldUseColor() {
		ui.ForceNoColor()
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
