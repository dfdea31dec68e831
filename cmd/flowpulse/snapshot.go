package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/flowpulse/pkg/client"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print the current dashboard snapshot",
	Long: `Fetch the overview, 24h timeline and 24h volume from a running server.

Examples:
  # Summary view
  flowpulse snapshot --server localhost:4000

  # Raw JSON
  flowpulse snapshot -o json`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().String("server", "localhost:4000", "Server address")
	snapshotCmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	serverAddr, _ := cmd.Flags().GetString("server")
	output, _ := cmd.Flags().GetString("output")

	c, err := client.NewClient(serverAddr)
	if err != nil {
		return fmt.Errorf("failed to create client: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snap, err := c.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch snapshot: %v", err)
	}

	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "text":
	default:
		return fmt.Errorf("unsupported output format: %s", output)
	}

	o := snap.Overview
	fmt.Println("Overview:")
	fmt.Printf("  SLA compliance:    %d%%\n", o.SLACompliance)
	fmt.Printf("  Avg cycle time:    %d min\n", o.CycleTime)
	fmt.Printf("  Active anomalies:  %d\n", o.ActiveAnomalies)
	fmt.Printf("  Workflows tracked: %d\n", o.TotalWorkflowsToday)
	fmt.Println()

	fmt.Println("Volume (last 24h):")
	fmt.Printf("  %-4s %9s %7s %7s\n", "HOUR", "COMPLETED", "PENDING", "ANOMALY")
	for _, b := range snap.Volume {
		fmt.Printf("  %02d   %9d %7d %7d\n", b.Hour, b.Completed, b.Pending, b.Anomaly)
	}
	fmt.Println()
	fmt.Printf("Timeline: %d events in the last 24h\n", len(snap.Events))
	return nil
}
