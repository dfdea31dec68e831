package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cuemby/flowpulse/pkg/config"
	"github.com/cuemby/flowpulse/pkg/log"
	"github.com/cuemby/flowpulse/pkg/metrics"
	"github.com/cuemby/flowpulse/pkg/query"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DefaultHeartbeat = 15 * time.Second
	DefaultQueueSize = 128

	defaultDropInterval = 10 * time.Second
)

// Options configures the HTTP server
type Options struct {
	// Heartbeat is the SSE comment and WebSocket ping period
	Heartbeat time.Duration
	// QueueSize bounds each subscriber's outbound frame queue
	QueueSize int
	// Chaos injects faults into stats requests and streams
	Chaos config.ChaosConfig
	// Chance returns a uniform draw in [0,1) for chaos decisions
	Chance func() float64
}

// Server exposes the query facade over HTTP, SSE and WebSocket
type Server struct {
	facade   *query.Facade
	opts     Options
	router   chi.Router
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu   sync.Mutex
	http *http.Server

	stopCh   chan struct{}
	stopOnce sync.Once
	streams  sync.WaitGroup
}

// NewServer creates a new API server
func NewServer(facade *query.Facade, opts Options) *Server {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Chaos.StreamDropInterval <= 0 {
		opts.Chaos.StreamDropInterval = defaultDropInterval
	}
	if opts.Chance == nil {
		opts.Chance = rand.Float64
	}

	s := &Server{
		facade: facade,
		opts:   opts,
		upgrader: websocket.Upgrader{
			// dashboards are served from other origins, same as the CORS policy
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: log.WithComponent("api"),
		stopCh: make(chan struct{}),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)
	r.Use(cors)

	r.Get("/snapshot", s.handleSnapshot)
	r.Route("/stats", func(r chi.Router) {
		r.Use(s.chaos)
		r.Get("/overview", s.handleOverview)
		r.Get("/timeline", s.handleTimeline)
		r.Get("/anomalies", s.handleAnomalies)
		r.Get("/volume", s.handleVolume)
		r.Get("/heatmap", s.handleHeatmap)
	})
	r.Get("/stream", s.handleStream)
	r.Get("/ws", s.handleWebSocket)

	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Handle("/metrics", metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on addr and serves until Shutdown
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(lis net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		// no WriteTimeout: stream responses stay open indefinitely
	}

	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	metrics.SetComponent("api", true, "listening on "+lis.Addr().String())
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("HTTP API listening")

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		metrics.SetComponent("api", false, err.Error())
		return err
	}
	return nil
}

// Shutdown closes every open stream, then stops the HTTP server and waits
// for stream handlers to return or ctx to expire
func (s *Server) Shutdown(ctx context.Context) error {
	// close under mu so trackStream never adds after Wait has started
	s.mu.Lock()
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Unlock()
	metrics.SetComponent("api", false, "shutting down")

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.streams.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// trackStream registers a stream handler with the shutdown wait group. It
// returns false once Shutdown has begun; the caller must then refuse the
// stream. Otherwise the caller must call s.streams.Done when it returns.
func (s *Server) trackStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.stopCh:
		return false
	default:
	}
	s.streams.Add(1)
	return true
}

// dropTicker returns the chaos check channel for one stream, nil when
// stream drops are disabled
func (s *Server) dropTicker() (<-chan time.Time, func()) {
	if s.opts.Chaos.StreamDropRate <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(s.opts.Chaos.StreamDropInterval)
	return t.C, t.Stop
}

// strikes reports whether an injected fault with the given rate fires
func (s *Server) strikes(rate float64, kind string) bool {
	if rate <= 0 || s.opts.Chance() >= rate {
		return false
	}
	metrics.ChaosFaults.WithLabelValues(kind).Inc()
	return true
}
