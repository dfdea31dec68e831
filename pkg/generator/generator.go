package generator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/cuemby/flowpulse/pkg/types"
	"github.com/google/uuid"
)

const (
	completedCutoff = 0.6 // [0, 0.6) completed
	pendingCutoff   = 0.8 // [0.6, 0.8) pending, [0.8, 1) anomaly
)

// Options configures a Generator. Zero values use a time-seeded source and
// the wall clock.
type Options struct {
	Rand *rand.Rand
	Now  func() time.Time
	// NewID overrides event id generation
	NewID func() string
}

// Generator produces synthetic workflow events
type Generator struct {
	mu    sync.Mutex
	rnd   *rand.Rand
	now   func() time.Time
	newID func() string
}

// New creates a new generator
func New(opts Options) *Generator {
	g := &Generator{
		rnd:   opts.Rand,
		now:   opts.Now,
		newID: opts.NewID,
	}
	if g.rnd == nil {
		g.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.newID == nil {
		g.newID = func() string { return "ev_" + uuid.New().String() }
	}
	return g
}

// Float64 returns a uniform draw in [0, 1) from the generator's source
func (g *Generator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64()
}

// Int63n returns a uniform draw in [0, n) from the generator's source
func (g *Generator) Int63n(n int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Int63n(n)
}

// RandomType picks an event type: 60% completed, 20% pending, 20% anomaly
func (g *Generator) RandomType() types.EventType {
	return TypeForDraw(g.Float64())
}

// TypeForDraw maps a uniform draw in [0, 1) onto an event type
func TypeForDraw(r float64) types.EventType {
	switch {
	case r < completedCutoff:
		return types.EventCompleted
	case r < pendingCutoff:
		return types.EventPending
	default:
		return types.EventAnomaly
	}
}

// RandomSeverity returns a uniform severity in [1, 5]
func (g *Generator) RandomSeverity() int {
	return types.MinSeverity + int(g.Int63n(types.MaxSeverity-types.MinSeverity+1))
}

// RandomCycleTime returns a uniform cycle time in [10, 130] minutes
func (g *Generator) RandomCycleTime() int {
	return types.MinCycleTime + int(g.Int63n(types.MaxCycleTime-types.MinCycleTime+1))
}

// Generate creates an event stamped with the current time
func (g *Generator) Generate() types.Event {
	return g.GenerateAt(g.now().UnixMilli())
}

// GenerateAt creates an event with the given timestamp (ms since epoch)
func (g *Generator) GenerateAt(ts int64) types.Event {
	id := g.newID()

	switch g.RandomType() {
	case types.EventCompleted:
		return types.NewCompleted(id, ts, g.RandomCycleTime())
	case types.EventAnomaly:
		return types.NewAnomaly(id, ts, g.RandomSeverity())
	default:
		return types.NewPending(id, ts)
	}
}

// Now returns the generator's clock reading
func (g *Generator) Now() time.Time {
	return g.now()
}
