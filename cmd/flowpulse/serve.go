package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/flowpulse/pkg/api"
	"github.com/cuemby/flowpulse/pkg/events"
	"github.com/cuemby/flowpulse/pkg/generator"
	"github.com/cuemby/flowpulse/pkg/log"
	"github.com/cuemby/flowpulse/pkg/metrics"
	"github.com/cuemby/flowpulse/pkg/query"
	"github.com/cuemby/flowpulse/pkg/simulation"
	"github.com/cuemby/flowpulse/pkg/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the event simulation and HTTP API",
	Long: `Seed the history with a day of events, start the simulation loop and
serve the stats, snapshot and stream endpoints until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().Int("seed-count", 0, "Number of historical events to seed (overrides config)")
	serveCmd.Flags().Duration("min-interval", 0, "Minimum delay between generated events (overrides config)")
	serveCmd.Flags().Duration("max-interval", 0, "Maximum delay between generated events (overrides config)")
	serveCmd.Flags().Int64("rand-seed", 0, "Seed for the event generator, 0 for time based")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	initLogging(cfg)
	metrics.SetVersion(Version)
	logger := log.WithComponent("serve")

	genOpts := generator.Options{}
	if seed, _ := cmd.Flags().GetInt64("rand-seed"); seed != 0 {
		genOpts.Rand = rand.New(rand.NewSource(seed))
	}
	gen := generator.New(genOpts)

	store, err := storage.New(cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("failed to create store: %v", err)
	}
	store.Seed(gen, cfg.Store.SeedCount, gen.Now())
	metrics.SetComponent("store", true, fmt.Sprintf("seeded %d events", store.Len()))
	logger.Info().Int("events", store.Len()).Msg("History seeded")

	hub := events.NewHub(cfg.HubConfig())
	loop, err := simulation.NewLoop(gen, store, hub, cfg.SimulationConfig())
	if err != nil {
		return fmt.Errorf("failed to create simulation: %v", err)
	}

	facade := query.New(store, hub, query.Options{})
	server := api.NewServer(facade, api.Options{
		Heartbeat: cfg.Stream.Heartbeat,
		QueueSize: cfg.Stream.QueueSize,
		Chaos:     cfg.Chaos,
	})

	collector := metrics.NewCollector(facade, 0)
	collector.Start()
	defer collector.Stop()

	if err := loop.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start simulation: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil {
			errCh <- fmt.Errorf("API server error: %v", err)
		}
	}()

	fmt.Printf("FlowPulse %s serving on %s. Press Ctrl+C to stop.\n", Version, cfg.Server.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case runErr = <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", runErr)
	}

	// stop the writer first so no event is broadcast into closed streams
	loop.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	hub.Close()

	fmt.Println("✓ Shutdown complete")
	return runErr
}
