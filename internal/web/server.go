// Package web provides the JSON HTTP API of the access-control-list
// service: batch submission, dry-run validation, job status, version
// queries, compare, rollback and history.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rcastellanos/fareacl/internal/config"
	"github.com/rcastellanos/fareacl/internal/jobs"
	"github.com/rcastellanos/fareacl/internal/metrics"
	"github.com/rcastellanos/fareacl/internal/version"
)

// Server is the HTTP server for the list service.
type Server struct {
	cfg     *config.Config
	rec     *version.Reconciler
	runner  *jobs.Runner
	metrics *metrics.Metrics
	log     *slog.Logger
	router  *chi.Mux
	server  *http.Server
}

// NewServer wires the router, middleware and routes.
func NewServer(cfg *config.Config, rec *version.Reconciler, runner *jobs.Runner, m *metrics.Metrics, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		rec:     rec,
		runner:  runner,
		metrics: m,
		log:     log,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(trustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute, s.log)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Submissions and rollbacks get a tighter per-IP budget than reads.
	var submitLimiter *rateLimiter
	if s.cfg.Rate.Enabled {
		submitLimiter = newRateLimiter(s.cfg.Rate.SubmitLimit, time.Minute, s.log)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Get("/history/{entryID}", s.handleHistoryEntry)

		r.Route("/lists/{list}", func(r chi.Router) {
			r.Get("/current", s.handleCurrent)
			r.Get("/records", s.handleRecords)
			r.Get("/records/{key}", s.handleRecord)
			r.Get("/compare", s.handleCompare)
			r.Get("/history", s.handleHistory)
			r.Get("/history/latest", s.handleHistoryLatest)

			r.Group(func(r chi.Router) {
				if submitLimiter != nil {
					r.Use(submitLimiter.middleware)
				}
				r.Post("/versions", s.handleSubmit)
				r.Post("/versions/validate", s.handleValidate)
				r.Post("/rollback", s.handleRollback)
			})
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.log.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// trustedRealIP rewrites RemoteAddr from X-Real-IP or X-Forwarded-For,
// but only for connections arriving from a configured proxy. Forwarding
// headers set by arbitrary clients are ignored. Proxies are given as
// CIDRs or plain addresses.
func trustedRealIP(proxies []string) func(http.Handler) http.Handler {
	var trusted []netip.Prefix
	for _, p := range proxies {
		if pfx, err := netip.ParsePrefix(p); err == nil {
			trusted = append(trusted, pfx)
			continue
		}
		if addr, err := netip.ParseAddr(p); err == nil {
			trusted = append(trusted, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if fromTrustedProxy(r.RemoteAddr, trusted) {
				if ip := forwardedClientIP(r); ip != "" {
					r.RemoteAddr = net.JoinHostPort(ip, "0")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func fromTrustedProxy(remoteAddr string, trusted []netip.Prefix) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	for _, pfx := range trusted {
		if pfx.Contains(addr) {
			return true
		}
	}
	return false
}

func forwardedClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return strings.TrimSpace(ip)
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return ""
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	log      *slog.Logger
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration, log *slog.Logger) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		log:      log,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}

	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// RemoteAddr is the connection peer, already rewritten by
		// trustedRealIP when the peer is a configured proxy. Headers
		// are never consulted here.
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			rl.log.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
