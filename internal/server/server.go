package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/zapdesk/zapmetrics/internal/analytics"
	"github.com/zapdesk/zapmetrics/internal/config"
	"github.com/zapdesk/zapmetrics/internal/logger"
	"github.com/zapdesk/zapmetrics/internal/metrics"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP server for the analytics API.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	engine  *analytics.Engine
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo
	log     *logger.Logger
	metrics *metrics.Metrics

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server.
func New(
	cfg config.Config, engine *analytics.Engine, opts ...Option,
) *Server {
	s := &Server{
		cfg:    cfg,
		engine: engine,
		mux:    http.NewServeMux(),
		log:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithLogger sets the request logger. Nil is ignored.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records request metrics and, when enabled in the
// config, serves them on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func (s *Server) routes() {
	s.handle("GET /api/v1/dashboard/stats", s.withTimeout(s.handleDashboard))
	// SSE: Do not use timeout, as this is a long-lived connection.
	s.handle("GET /api/v1/dashboard/watch",
		http.HandlerFunc(s.handleWatchDashboard))

	s.handle("GET /api/v1/reports/metrics", s.withTimeout(s.handleMetricsReport))
	s.handle("GET /api/v1/reports/productivity",
		s.withTimeout(s.handleProductivity))
	// Export: Do not use timeout handler to avoid buffering the workbook.
	s.handle("GET /api/v1/reports/productivity/export",
		http.HandlerFunc(s.handleExportProductivity))

	s.handle("GET /api/v1/stats", s.withTimeout(s.handleGetStats))
	s.handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))

	if s.metrics != nil && s.cfg.MetricsEnabled {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// handle registers h under pattern, recording request metrics
// labeled by the pattern.
func (s *Server) handle(pattern string, h http.Handler) {
	if s.metrics == nil {
		s.mux.Handle(pattern, h)
		return
	}
	m := s.metrics
	s.mux.Handle(pattern, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			h.ServeHTTP(rec, r)
			m.ObserveRequest(pattern, rec.status, time.Since(start))
		},
	))
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	s.writeJSON(w, http.StatusOK, s.version)
}

// handleGetStats returns row counts of the caller's
// organization, narrowed to the caller's chats for agents.
func (s *Server) handleGetStats(
	w http.ResponseWriter, r *http.Request,
) {
	req, ok := s.parseReportRequest(w, r)
	if !ok {
		return
	}
	stats, err := s.engine.Stats(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.httpSrv = srv
	s.mu.Unlock()
	s.log.WithField("addr", addr).Info("starting server")
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set(
				"Access-Control-Allow-Origin", "*",
			)
			w.Header().Set(
				"Access-Control-Allow-Methods",
				"GET, OPTIONS",
			)
			w.Header().Set(
				"Access-Control-Allow-Headers",
				strings.Join([]string{
					"Content-Type", headerOrgID,
					headerUserID, logger.RequestIDHeader,
				}, ", "),
			)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		reqID := logger.RequestID(r)
		w.Header().Set(logger.RequestIDHeader, reqID)
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithRequest(r, reqID).
			WithField("status", rec.status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("request")
	})
}
