package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/flowpulse/pkg/events"
	"github.com/cuemby/flowpulse/pkg/simulation"
	"github.com/cuemby/flowpulse/pkg/storage"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate and Load for out-of-range values
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultAddr            = "0.0.0.0:4000"
	DefaultSeedCount       = 200
	DefaultHeartbeat       = 15 * time.Second
	DefaultStreamQueueSize = 128
	DefaultStreamDropCheck = 10 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultLogLevel        = "info"
)

// Config is the full service configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Store      StoreConfig      `yaml:"store"`
	Simulation SimulationConfig `yaml:"simulation"`
	Stream     StreamConfig     `yaml:"stream"`
	Chaos      ChaosConfig      `yaml:"chaos"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type StoreConfig struct {
	MaxEvents  int `yaml:"maxEvents"`
	ResetLevel int `yaml:"resetLevel"`
	SeedCount  int `yaml:"seedCount"`
}

type SimulationConfig struct {
	MinInterval time.Duration `yaml:"minInterval"`
	MaxInterval time.Duration `yaml:"maxInterval"`
}

// StreamConfig controls subscriber transports
type StreamConfig struct {
	// Heartbeat is the keepalive period for SSE comments and WebSocket pings
	Heartbeat time.Duration `yaml:"heartbeat"`
	// QueueSize bounds the outbound frame queue of each subscriber. It must
	// exceed MaxPending so a full backfill flush fits.
	QueueSize int `yaml:"queueSize"`
	// MaxPending bounds the live events held back during backfill
	MaxPending int `yaml:"maxPending"`
}

// ChaosConfig injects failures for exercising dashboard error paths.
// All rates are probabilities in [0,1]; zero disables the fault.
type ChaosConfig struct {
	StatsErrorRate     float64       `yaml:"statsErrorRate"`
	StreamDropRate     float64       `yaml:"streamDropRate"`
	StreamDropInterval time.Duration `yaml:"streamDropInterval"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            DefaultAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Store: StoreConfig{
			MaxEvents:  storage.DefaultMaxEvents,
			ResetLevel: storage.DefaultResetLevel,
			SeedCount:  DefaultSeedCount,
		},
		Simulation: SimulationConfig{
			MinInterval: simulation.DefaultMinInterval,
			MaxInterval: simulation.DefaultMaxInterval,
		},
		Stream: StreamConfig{
			Heartbeat:  DefaultHeartbeat,
			QueueSize:  DefaultStreamQueueSize,
			MaxPending: events.DefaultMaxPending,
		},
		Chaos: ChaosConfig{
			StreamDropInterval: DefaultStreamDropCheck,
		},
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section and reports the first bad value
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return invalid("server.shutdownTimeout must not be negative")
	}
	if err := c.StoreConfig().Validate(); err != nil {
		return fmt.Errorf("%w: store: %v", ErrInvalidConfig, err)
	}
	if c.Store.SeedCount < 0 {
		return invalid("store.seedCount must not be negative")
	}
	if err := c.SimulationConfig().Validate(); err != nil {
		return fmt.Errorf("%w: simulation: %v", ErrInvalidConfig, err)
	}
	if c.Stream.Heartbeat <= 0 {
		return invalid("stream.heartbeat must be positive")
	}
	if c.Stream.QueueSize <= 0 {
		return invalid("stream.queueSize must be positive")
	}
	if c.Stream.MaxPending <= 0 {
		return invalid("stream.maxPending must be positive")
	}
	// onboarding pushes the snapshot and every held-back event at once
	if c.Stream.QueueSize <= c.Stream.MaxPending {
		return invalid("stream.queueSize must be greater than stream.maxPending")
	}
	if !isRate(c.Chaos.StatsErrorRate) {
		return invalid("chaos.statsErrorRate must be in [0,1]")
	}
	if !isRate(c.Chaos.StreamDropRate) {
		return invalid("chaos.streamDropRate must be in [0,1]")
	}
	if c.Chaos.StreamDropRate > 0 && c.Chaos.StreamDropInterval <= 0 {
		return invalid("chaos.streamDropInterval must be positive when streamDropRate is set")
	}
	return nil
}

// StoreConfig converts the store section
func (c Config) StoreConfig() storage.Config {
	return storage.Config{MaxEvents: c.Store.MaxEvents, ResetLevel: c.Store.ResetLevel}
}

// SimulationConfig converts the simulation section
func (c Config) SimulationConfig() simulation.Config {
	return simulation.Config{MinInterval: c.Simulation.MinInterval, MaxInterval: c.Simulation.MaxInterval}
}

// HubConfig converts the stream section into hub settings
func (c Config) HubConfig() events.Config {
	return events.Config{MaxPending: c.Stream.MaxPending}
}

// Marshal renders the configuration as YAML
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

func isRate(v float64) bool {
	return v >= 0 && v <= 1
}
