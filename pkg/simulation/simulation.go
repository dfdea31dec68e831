package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/flowpulse/pkg/generator"
	"github.com/cuemby/flowpulse/pkg/log"
	"github.com/cuemby/flowpulse/pkg/metrics"
	"github.com/cuemby/flowpulse/pkg/types"
	"github.com/rs/zerolog"
)

const (
	DefaultMinInterval = 10 * time.Second
	DefaultMaxInterval = 20 * time.Second
)

// ErrAlreadyStarted is returned when Start is called twice
var ErrAlreadyStarted = errors.New("simulation already started")

// State is the loop's position in its cycle
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
	StateFiring    State = "firing"
	StateStopped   State = "stopped"
)

// Appender is the write side of the event store
type Appender interface {
	Append(types.Event) types.Event
}

// Broadcaster fans an appended event out to subscribers
type Broadcaster interface {
	Broadcast(types.Event)
}

// Config holds the pacing of the loop
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Validate checks the interval bounds
func (c Config) Validate() error {
	if c.MinInterval <= 0 || c.MaxInterval < c.MinInterval {
		return fmt.Errorf("invalid simulation interval [%s, %s]", c.MinInterval, c.MaxInterval)
	}
	return nil
}

// Loop is the single writer: on a randomized cadence it generates an event,
// appends it to the store and broadcasts the stored copy
type Loop struct {
	gen   *generator.Generator
	store Appender
	hub   Broadcaster
	cfg   Config

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	doneCh  chan struct{}
	lastTS  int64
	cycles  int
	started bool

	logger zerolog.Logger
}

// NewLoop creates a new simulation loop. Zero intervals use the defaults.
func NewLoop(gen *generator.Generator, store Appender, hub Broadcaster, cfg Config) (*Loop, error) {
	if cfg.MinInterval == 0 && cfg.MaxInterval == 0 {
		cfg = Config{MinInterval: DefaultMinInterval, MaxInterval: DefaultMaxInterval}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Loop{
		gen:    gen,
		store:  store,
		hub:    hub,
		cfg:    cfg,
		state:  StateIdle,
		logger: log.WithComponent("simulation"),
	}, nil
}

// Start begins the loop in a background goroutine. The loop runs until ctx
// is cancelled or Stop is called.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return ErrAlreadyStarted
	}
	l.started = true

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.doneCh = make(chan struct{})

	go l.run(ctx)

	metrics.SetComponent("simulation", true, "running")
	l.logger.Info().
		Dur("min_interval", l.cfg.MinInterval).
		Dur("max_interval", l.cfg.MaxInterval).
		Msg("Simulation started")
	return nil
}

// Stop prevents further cycles from being scheduled and waits for the loop
// goroutine to exit. A cycle already firing completes first.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.doneCh
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// run is the main simulation loop
func (l *Loop) run(ctx context.Context) {
	defer func() {
		l.setState(StateStopped)
		metrics.SetComponent("simulation", false, "stopped")
		l.logger.Info().Int("cycles", l.Cycles()).Msg("Simulation stopped")
		close(l.doneCh)
	}()

	for {
		delay := l.NextDelay()
		l.setState(StateScheduled)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			l.Step()
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// NextDelay draws a delay uniformly from [MinInterval, MaxInterval]
func (l *Loop) NextDelay() time.Duration {
	span := int64(l.cfg.MaxInterval - l.cfg.MinInterval)
	return l.cfg.MinInterval + time.Duration(l.gen.Int63n(span+1))
}

// Step runs one cycle synchronously and returns the stored event
func (l *Loop) Step() types.Event {
	l.setState(StateFiring)

	evt := l.gen.Generate()

	l.mu.Lock()
	// keep the history non-decreasing even if the wall clock steps back
	if evt.Timestamp < l.lastTS {
		evt.Timestamp = l.lastTS
	}
	l.lastTS = evt.Timestamp
	l.cycles++
	l.mu.Unlock()

	stored := l.store.Append(evt)
	l.hub.Broadcast(stored)

	metrics.EventsGenerated.WithLabelValues(string(stored.Type)).Inc()
	metrics.SimulationCycles.Inc()
	l.logger.Debug().
		Str("event_id", stored.ID).
		Str("type", string(stored.Type)).
		Uint64("seq", stored.Seq).
		Msg("Event generated")

	return stored
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateStopped {
		return
	}
	l.state = s
}

// State returns the current loop state
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Cycles returns how many events the loop has produced
func (l *Loop) Cycles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycles
}
