// Package http serves settlement reports over a small JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"settle/internal/cache"
	"settle/internal/core"
	"settle/internal/log"
	"settle/internal/report"
)

// Settler is the part of services.SettleService the server needs.
type Settler interface {
	Periods(ctx context.Context) ([]core.Period, error)
	ResolvePeriod(ctx context.Context, requested core.Period) (core.Period, error)
	Run(ctx context.Context, period core.Period) (report.Report, error)
}

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	Addr      string
	CacheSize int
	CacheTTL  time.Duration
	// RateLimit is requests per minute per client IP; 0 disables it.
	RateLimit int
	// Registry receives the server's collectors and backs /metrics.
	Registry *prometheus.Registry
	Logger   *log.Logger
}

type Server struct {
	http.Server
	settler Settler
	logger  *log.Logger

	reports  *cache.LRUCache[core.Period, report.Report]
	cacheMgr *cache.Manager
	limiter  *rateLimiter

	started      bool
	shutdownOnce sync.Once
}

func NewServer(settler Settler, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if opts.CacheSize < 1 {
		opts.CacheSize = 32
	}

	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "settle",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the per-client rate limiter.",
	})
	reg.MustRegister(hits)

	s := &Server{
		settler:  settler,
		logger:   logger.WithComponent(log.ComponentHTTP),
		reports:  cache.NewLRUCache[core.Period, report.Report](opts.CacheSize, opts.CacheTTL),
		cacheMgr: cache.NewManager(logger),
		limiter:  newRateLimiter(opts.RateLimit, hits),
	}
	s.cacheMgr.Register(s.reports)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "settle",
		Subsystem: "http",
		Name:      "cached_reports",
		Help:      "Settlement reports currently cached.",
	}, func() float64 { return float64(s.reports.Size()) }))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /periods", s.handlePeriods)
	mux.HandleFunc("GET /settlements", s.handleSettlement)
	mux.HandleFunc("GET /settlements/{period}", s.handleSettlement)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	var handler http.Handler = mux
	handler = s.limiter.middleware(handler)
	handler = securityHeaders(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Start launches background maintenance. Call before ListenAndServe.
func (s *Server) Start() {
	s.started = true
	s.cacheMgr.StartCleanup(time.Minute)
	s.limiter.startCleanup(5 * time.Minute)
}

// InvalidateReports drops every cached report, e.g. after the underlying
// data changed.
func (s *Server) InvalidateReports() {
	s.reports.Purge()
	s.logger.Debug("Report cache purged")
}

// Shutdown stops background goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		if s.started {
			s.cacheMgr.Stop()
		}
	})
	return err
}
