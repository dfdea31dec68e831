package api

import (
	"fmt"
	"sync"

	"github.com/cuemby/flowpulse/pkg/events"
)

// ErrSlowConsumer is returned when a subscriber's outbound queue is full.
// It wraps events.ErrBufferOverflow so the hub reports it as an overflow.
var ErrSlowConsumer = fmt.Errorf("slow consumer: %w", events.ErrBufferOverflow)

// queueChannel adapts a network stream to events.Channel. Write only
// enqueues; the stream handler drains Frames onto the connection. A full
// queue closes the channel so the handler hangs up.
type queueChannel struct {
	frames chan events.Frame
	done   chan struct{}
	once   sync.Once
}

func newQueueChannel(size int) *queueChannel {
	return &queueChannel{
		frames: make(chan events.Frame, size),
		done:   make(chan struct{}),
	}
}

func (q *queueChannel) Write(f events.Frame) error {
	if !q.IsOpen() {
		return events.ErrChannelClosed
	}
	select {
	case q.frames <- f:
		return nil
	default:
		q.Close()
		return ErrSlowConsumer
	}
}

func (q *queueChannel) IsOpen() bool {
	select {
	case <-q.done:
		return false
	default:
		return true
	}
}

// IsWritable is the same as IsOpen; overflow is detected by Write
func (q *queueChannel) IsWritable() bool {
	return q.IsOpen()
}

// Close marks the channel closed. Safe to call more than once.
func (q *queueChannel) Close() {
	q.once.Do(func() { close(q.done) })
}

// Frames is drained by the stream handler
func (q *queueChannel) Frames() <-chan events.Frame {
	return q.frames
}

// Done is closed once the channel is closed
func (q *queueChannel) Done() <-chan struct{} {
	return q.done
}
