package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 512
)

// wsMessage is the envelope for every WebSocket frame
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// handleWebSocket serves the same feed as handleStream over a WebSocket
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.trackStream() {
		writeError(w, http.StatusServiceUnavailable, "server shutting down")
		return
	}
	defer s.streams.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	q := newQueueChannel(s.opts.QueueSize)
	defer q.Close()

	unsubscribe, err := s.facade.OnSubscribe(q)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to subscribe WebSocket")
		return
	}
	defer unsubscribe()

	logger := s.logger.With().Str("transport", "ws").Str("remote", r.RemoteAddr).Logger()
	logger.Debug().Msg("Stream opened")
	defer logger.Debug().Msg("Stream closed")

	pongWait := 2 * s.opts.Heartbeat
	conn.SetReadLimit(wsMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// the read loop only exists to process control frames and notice the
	// client going away
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug().Err(err).Msg("WebSocket read error")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(s.opts.Heartbeat)
	defer ping.Stop()
	drop, stopDrop := s.dropTicker()
	defer stopDrop()

	for {
		select {
		case f := <-q.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsMessage{Type: string(f.Kind), Data: f.Data}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-drop:
			if s.strikes(s.opts.Chaos.StreamDropRate, "stream_drop") {
				logger.Warn().Msg("Chaos cut the stream")
				closeWebSocket(conn, websocket.CloseTryAgainLater, "stream dropped")
				return
			}
		case <-q.Done():
			logger.Warn().Msg("Dropping slow stream consumer")
			closeWebSocket(conn, websocket.ClosePolicyViolation, "slow consumer")
			return
		case <-readDone:
			return
		case <-s.stopCh:
			closeWebSocket(conn, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func closeWebSocket(conn *websocket.Conn, code int, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
