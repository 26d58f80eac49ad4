// Package api wires the HTTP surface: the queue-control endpoints, the
// range-capable media server, and a health check, behind the chi
// middleware stack used throughout this system.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"golang.org/x/time/rate"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/cancel"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/config"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/httpapi"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/mediaserver"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/metrics"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/queue"
)

// queueControlRPS and queueControlBurst bound how fast a misbehaving
// client can hammer the /api/queue/* endpoints.
const (
	queueControlRPS   = 5
	queueControlBurst = 10
)

type Server struct {
	router   chi.Router
	server   *http.Server
	listener net.Listener
	addr     string
	logger   zerolog.Logger
}

// New builds the server and binds its listener, but does not start
// serving until Start is called.
func New(cfg *config.Provider, q *queue.Queue, cm *cancel.Manager, logger zerolog.Logger) (*Server, error) {
	addr := cfg.Snapshot().ListenAddr
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggerMiddleware(logger))
	r.Use(rateLimitMiddleware(queueControlRPS, queueControlBurst))

	r.Get("/health", healthHandler)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpapi.New(q, cm, logger).Mount(r)

	mh := mediaserver.New(cfg, logger)
	r.Get("/files/*", mh.ServeHTTP)

	return &Server{
		router:   r,
		listener: listener,
		addr:     listener.Addr().String(),
		logger:   logger,
		server: &http.Server{
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // media streaming can run long
		},
	}, nil
}

func (s *Server) Addr() string { return s.addr }

func (s *Server) Start() {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("http server error")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

var logBlacklist = []string{"/health"}

func loggerMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			for _, s := range logBlacklist {
				if strings.HasSuffix(r.URL.Path, s) {
					return
				}
			}

			logger.Trace().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("HTTP request")
		})
	}
}

// rateLimitMiddleware applies a global token-bucket limit to the
// queue-control API, leaving health, metrics, and media streaming
// unthrottled.
func rateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/files/") || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// healthResponse reports process-host vitals alongside the liveness flag,
// so an operator polling /health can tell a slow box from a stuck one
// without reaching for a separate metrics scrape.
type healthResponse struct {
	Status        string  `json:"status"`
	Time          string  `json:"time"`
	UptimeSeconds uint64  `json:"uptime_seconds,omitempty"`
	MemUsedPct    float64 `json:"mem_used_percent,omitempty"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "healthy",
		Time:   time.Now().Format(time.RFC3339),
	}
	if uptime, err := host.Uptime(); err == nil {
		resp.UptimeSeconds = uptime
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemUsedPct = vm.UsedPercent
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
