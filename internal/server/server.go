// Package server implements the HTTP API for inspecting and building routing
// fragments.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dray-io/shardroute/internal/fragment"
	"github.com/dray-io/shardroute/internal/logging"
	"github.com/dray-io/shardroute/internal/metrics"
)

const (
	contentTypeJSON   = "application/json"
	contentTypeBinary = "application/octet-stream"

	defaultShutdownTimeout = 5 * time.Second
)

// Config holds the API server settings.
type Config struct {
	Addr string
	// MaxBodyBytes caps request bodies. Zero means no limit.
	MaxBodyBytes int64
	// MaxPayloadBytes caps the declared routing size of decoded fragments.
	MaxPayloadBytes int
	// Compression is the default for the encode endpoint.
	Compression fragment.Compression
}

// Server serves the fragment API.
type Server struct {
	mu        sync.RWMutex
	cfg       Config
	boundAddr string
	server    *http.Server
	logger    *logging.Logger
	metrics   *metrics.CodecMetrics
	decoder   *fragment.Decoder
	extra     map[string]http.Handler
	shutDown  atomic.Bool
}

// New creates a server. A nil logger falls back to the global logger.
func New(cfg Config, m *metrics.CodecMetrics, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Global()
	}
	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		decoder: fragment.NewDecoder(cfg.MaxPayloadBytes).WithMetrics(m).WithLogger(logger),
		extra:   make(map[string]http.Handler),
	}
}

// RegisterHandler mounts an extra GET handler, such as /metrics.
// Call before Start or Router.
func (s *Server) RegisterHandler(pattern string, handler http.Handler) {
	if pattern == "" || handler == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.extra[pattern] = handler
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.withJobID)

	r.Get("/health", s.handleHealth)
	r.Route("/v1/fragments", func(r chi.Router) {
		r.Post("/decode", s.handleDecode)
		r.Post("/encode", s.handleEncode)
	})

	s.mu.RLock()
	for pattern, handler := range s.extra {
		r.Method(http.MethodGet, pattern, handler)
	}
	s.mu.RUnlock()

	return r
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	s.mu.Lock()
	s.server = srv
	s.boundAddr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Infof("fragment API listening", map[string]any{"addr": ln.Addr().String()})

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("fragment API error", map[string]any{"error": err.Error()})
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.cfg.Addr
}

// SetShuttingDown makes /health report 503.
func (s *Server) SetShuttingDown() {
	s.shutDown.Store(true)
}

// Close marks the server as shutting down and stops it gracefully.
func (s *Server) Close() error {
	s.SetShuttingDown()

	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
