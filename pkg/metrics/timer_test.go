package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewTimer tests timer creation
func TestNewTimer(t *testing.T) {
	timer := NewTimer()

	if timer.start.IsZero() {
		t.Fatal("NewTimer() start time is zero")
	}
	if time.Since(timer.start) > time.Second {
		t.Error("NewTimer() start time is not recent")
	}
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()

	sleepDuration := 20 * time.Millisecond
	time.Sleep(sleepDuration)

	if d := timer.Duration(); d < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", d, sleepDuration)
	}
}

// TestTimerObserveDuration tests histogram observation
func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration histogram",
		Buckets: prometheus.DefBuckets,
	})
	reg := prometheus.NewRegistry()
	reg.MustRegister(histogram)

	NewTimer().ObserveDuration(histogram)

	if n := testutil.CollectAndCount(histogram); n != 1 {
		t.Errorf("expected 1 collected metric, got %d", n)
	}
}

// TestTimerObserveDurationVec tests histogram vec observation
func TestTimerObserveDurationVec(t *testing.T) {
	histogramVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "test_duration_vec_seconds",
			Help:    "Test duration histogram vec",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	timer := NewTimer()
	timer.ObserveDurationVec(histogramVec, "/snapshot")
	timer.ObserveDurationVec(histogramVec, "/stats/overview")

	if n := testutil.CollectAndCount(histogramVec); n != 2 {
		t.Errorf("expected 2 label sets, got %d", n)
	}
}

// TestMultipleTimers tests that multiple timers work independently
func TestMultipleTimers(t *testing.T) {
	timer1 := NewTimer()
	time.Sleep(10 * time.Millisecond)
	timer2 := NewTimer()
	time.Sleep(10 * time.Millisecond)

	if timer1.Duration() <= timer2.Duration() {
		t.Error("timer1 should be running longer than timer2")
	}
}
