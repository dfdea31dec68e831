package main

import (
	"fmt"
	"os"

	"github.com/cuemby/flowpulse/pkg/config"
	"github.com/cuemby/flowpulse/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "flowpulse",
	Short: "FlowPulse - real-time workflow event dashboard backend",
	Long: `FlowPulse synthesizes workflow lifecycle events, keeps a bounded
rolling history with aggregate statistics, and streams every new event
to dashboards over Server-Sent Events or WebSocket.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"FlowPulse version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads --config and applies the flag overrides shared by every
// command
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON, _ = flags.GetBool("log-json")
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Lookup("seed-count") != nil && flags.Changed("seed-count") {
		cfg.Store.SeedCount, _ = flags.GetInt("seed-count")
	}
	if flags.Lookup("min-interval") != nil && flags.Changed("min-interval") {
		cfg.Simulation.MinInterval, _ = flags.GetDuration("min-interval")
	}
	if flags.Lookup("max-interval") != nil && flags.Changed("max-interval") {
		cfg.Simulation.MaxInterval, _ = flags.GetDuration("max-interval")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func initLogging(cfg config.Config) {
	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     os.Stderr,
	})
}
