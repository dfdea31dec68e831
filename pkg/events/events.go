package events

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cuemby/flowpulse/pkg/log"
	"github.com/cuemby/flowpulse/pkg/metrics"
	"github.com/cuemby/flowpulse/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxPending bounds how many live events a subscription buffers
// while its backfill is being written
const DefaultMaxPending = 64

var (
	// ErrChannelClosed is returned when a channel is no longer open or writable
	ErrChannelClosed = errors.New("channel closed")
	// ErrBufferOverflow is returned when a pending subscription buffers too many events
	ErrBufferOverflow = errors.New("pending buffer overflow")
	// ErrUnsubscribed is returned when writing through a removed subscription
	ErrUnsubscribed = errors.New("subscription removed")
)

// FrameKind tells a transport how to label a frame on the wire
type FrameKind string

const (
	FrameEvent    FrameKind = "event"
	FrameSnapshot FrameKind = "snapshot"
)

// Frame is one serialized message for a subscriber
type Frame struct {
	Kind FrameKind
	Data []byte
}

// Channel is the transport side of a subscriber. Write must not block for
// long; transports queue and return an error when they cannot keep up.
type Channel interface {
	Write(Frame) error
	IsOpen() bool
	IsWritable() bool
}

// Subscription is a registered channel and its unsubscribe handle
type Subscription struct {
	id  string
	ch  Channel
	hub *Hub

	removed atomic.Bool

	mu         sync.Mutex
	live       bool
	pending    []pendingFrame
	maxPending int

	once sync.Once
}

type pendingFrame struct {
	seq   uint64
	frame Frame
}

// ID returns the subscription identifier
func (s *Subscription) ID() string {
	return s.id
}

// Unsubscribe removes the subscription from the hub. Safe to call more than
// once and from within a broadcast.
func (s *Subscription) Unsubscribe() {
	s.hub.remove(s, "")
}

// Send writes a frame directly to the channel, bypassing the live check.
// It is used for the backfill of a pending subscription.
func (s *Subscription) Send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed.Load() {
		return ErrUnsubscribed
	}
	if !s.ch.IsOpen() || !s.ch.IsWritable() {
		return ErrChannelClosed
	}
	return s.ch.Write(f)
}

// Activate flushes events buffered while pending whose sequence is above
// afterSeq, then switches the subscription to live delivery. Events at or
// below afterSeq are already covered by the backfill.
func (s *Subscription) Activate(afterSeq uint64) error {
	s.mu.Lock()
	if s.removed.Load() {
		s.mu.Unlock()
		return ErrUnsubscribed
	}

	var err error
	for _, p := range s.pending {
		if p.seq <= afterSeq {
			continue
		}
		if err = s.ch.Write(p.frame); err != nil {
			break
		}
	}
	s.pending = nil
	s.live = err == nil
	s.mu.Unlock()

	if err != nil {
		s.hub.remove(s, "write_error")
	}
	return err
}

// deliver hands one broadcast frame to the subscription
func (s *Subscription) deliver(seq uint64, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.removed.Load() {
		return nil
	}
	if !s.ch.IsOpen() || !s.ch.IsWritable() {
		return ErrChannelClosed
	}
	if !s.live {
		if len(s.pending) >= s.maxPending {
			return ErrBufferOverflow
		}
		s.pending = append(s.pending, pendingFrame{seq: seq, frame: f})
		return nil
	}
	return s.ch.Write(f)
}

// Config holds hub settings
type Config struct {
	MaxPending int
}

// Hub fans events out to every registered subscription.
//
// A failing or dead channel is removed without affecting delivery to the
// others. Broadcast reports nothing back; failures only show up as the
// registry shrinking.
type Hub struct {
	mu         sync.Mutex
	subs       map[*Subscription]struct{}
	maxPending int
	logger     zerolog.Logger
}

// NewHub creates a new broadcast hub
func NewHub(cfg Config) *Hub {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxPending
	}
	return &Hub{
		subs:       make(map[*Subscription]struct{}),
		maxPending: cfg.MaxPending,
		logger:     log.WithComponent("hub"),
	}
}

// Subscribe registers a channel for live delivery
func (h *Hub) Subscribe(ch Channel) *Subscription {
	return h.register(ch, true)
}

// SubscribePending registers a channel that buffers live events until
// Activate is called. Callers write a backfill with Send in between.
func (h *Hub) SubscribePending(ch Channel) *Subscription {
	return h.register(ch, false)
}

func (h *Hub) register(ch Channel, live bool) *Subscription {
	sub := &Subscription{
		id:         uuid.New().String(),
		ch:         ch,
		hub:        h,
		live:       live,
		maxPending: h.maxPending,
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	metrics.SubscribersActive.Set(float64(count))
	logger := log.WithSubscriberID(h.logger, sub.id)
	logger.Debug().
		Bool("live", live).
		Int("subscribers", count).
		Msg("Subscriber registered")
	return sub
}

// remove drops a subscription once. reason is empty for explicit
// unsubscribes and names the failure otherwise. It does not take sub.mu so
// a channel may unsubscribe from inside its own Write.
func (h *Hub) remove(sub *Subscription, reason string) {
	sub.once.Do(func() {
		sub.removed.Store(true)

		h.mu.Lock()
		delete(h.subs, sub)
		count := len(h.subs)
		h.mu.Unlock()

		metrics.SubscribersActive.Set(float64(count))
		logger := log.WithSubscriberID(h.logger, sub.id)
		if reason == "" {
			logger.Debug().Int("subscribers", count).Msg("Subscriber removed")
			return
		}
		metrics.BroadcastFailures.WithLabelValues(reason).Inc()
		logger.Warn().Str("reason", reason).Int("subscribers", count).Msg("Dropped subscriber")
	})
}

// Broadcast serializes evt once and writes it to every subscription
func (h *Hub) Broadcast(evt types.Event) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BroadcastDuration)

	data, err := json.Marshal(evt)
	if err != nil {
		h.logger.Error().Err(err).Str("event_id", evt.ID).Msg("Failed to encode event")
		return
	}
	frame := Frame{Kind: FrameEvent, Data: data}
	metrics.EventsBroadcast.Inc()

	// copy so subscriptions can be removed while we iterate
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.deliver(evt.Seq, frame); err != nil {
			h.remove(sub, failureReason(err))
		}
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrChannelClosed):
		return "closed"
	case errors.Is(err, ErrBufferOverflow):
		return "overflow"
	default:
		return "write_error"
	}
}

// Count returns the number of registered subscriptions
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close removes every subscription
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
