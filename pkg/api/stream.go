package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/flowpulse/pkg/events"
)

// handleStream serves the Server-Sent Events feed: a snapshot event first,
// then one data line per live event
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	if !s.trackStream() {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	defer s.streams.Done()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// comment line so clients see the connection open before any data
	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	q := newQueueChannel(s.opts.QueueSize)
	defer q.Close()

	unsubscribe, err := s.facade.OnSubscribe(q)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to subscribe stream")
		return
	}
	defer unsubscribe()

	logger := s.logger.With().Str("transport", "sse").Str("remote", r.RemoteAddr).Logger()
	logger.Debug().Msg("Stream opened")
	defer logger.Debug().Msg("Stream closed")

	heartbeat := time.NewTicker(s.opts.Heartbeat)
	defer heartbeat.Stop()
	drop, stopDrop := s.dropTicker()
	defer stopDrop()

	for {
		select {
		case f := <-q.Frames():
			if err := writeSSE(w, f); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-drop:
			if s.strikes(s.opts.Chaos.StreamDropRate, "stream_drop") {
				logger.Warn().Msg("Chaos cut the stream")
				return
			}
		case <-q.Done():
			logger.Warn().Msg("Dropping slow stream consumer")
			return
		case <-r.Context().Done():
			return
		case <-s.stopCh:
			return
		}
	}
}

func writeSSE(w io.Writer, f events.Frame) error {
	var err error
	switch f.Kind {
	case events.FrameSnapshot:
		_, err = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", f.Data)
	default:
		_, err = fmt.Fprintf(w, "data: %s\n\n", f.Data)
	}
	return err
}
