package metrics

import (
	"sync"
	"time"

	"github.com/cuemby/flowpulse/pkg/types"
)

// DefaultCollectInterval is how often the collector samples its source
const DefaultCollectInterval = 15 * time.Second

// Source is the read side the collector samples
type Source interface {
	Overview() types.OverviewStats
	Volume(hoursBack int) []types.VolumeBucket
}

// Collector periodically copies derived dashboard stats into gauges
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCollector creates a new metrics collector. A non-positive interval
// uses DefaultCollectInterval.
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = DefaultCollectInterval
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Collect samples the source once
func (c *Collector) Collect() {
	c.collectOverview()
	c.collectVolume()
}

func (c *Collector) collectOverview() {
	o := c.source.Overview()
	OverviewSLACompliance.Set(float64(o.SLACompliance))
	OverviewCycleTime.Set(float64(o.CycleTime))
	OverviewActiveAnomalies.Set(float64(o.ActiveAnomalies))
}

func (c *Collector) collectVolume() {
	var completed, pending, anomaly int
	for _, b := range c.source.Volume(24) {
		completed += b.Completed
		pending += b.Pending
		anomaly += b.Anomaly
	}

	EventsLastDay.WithLabelValues(string(types.EventCompleted)).Set(float64(completed))
	EventsLastDay.WithLabelValues(string(types.EventPending)).Set(float64(pending))
	EventsLastDay.WithLabelValues(string(types.EventAnomaly)).Set(float64(anomaly))
}
