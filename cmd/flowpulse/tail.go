package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/flowpulse/pkg/client"
	"github.com/cuemby/flowpulse/pkg/types"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow the live event stream",
	RunE:  runTail,
}

func init() {
	tailCmd.Flags().String("server", "localhost:4000", "Server address")
	tailCmd.Flags().Bool("json", false, "Print events as JSON lines")
}

func runTail(cmd *cobra.Command, args []string) error {
	serverAddr, _ := cmd.Flags().GetString("server")
	asJSON, _ := cmd.Flags().GetBool("json")

	c, err := client.NewClient(serverAddr)
	if err != nil {
		return fmt.Errorf("failed to create client: %v", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	onSnapshot := func(snap types.Snapshot) error {
		fmt.Fprintf(os.Stderr, "Connected: %d events in history, SLA %d%%\n",
			snap.Overview.TotalWorkflowsToday, snap.Overview.SLACompliance)
		return nil
	}
	onEvent := func(evt types.Event) error {
		if asJSON {
			return enc.Encode(evt)
		}
		fmt.Println(formatEvent(evt))
		return nil
	}

	if err := c.Tail(ctx, onSnapshot, onEvent); err != nil {
		return fmt.Errorf("stream ended: %v", err)
	}
	return nil
}

func formatEvent(evt types.Event) string {
	line := fmt.Sprintf("%s  %-9s  %s", evt.Time().Format(time.RFC3339), evt.Type, evt.ID)
	if sev, ok := evt.SeverityValue(); ok {
		line += fmt.Sprintf("  severity=%d", sev)
	}
	if ct, ok := evt.CycleTimeValue(); ok {
		line += fmt.Sprintf("  cycleTime=%dm", ct)
	}
	return line
}
