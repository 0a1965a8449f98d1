// Package server provides the HTTP endpoints the CV editor client talks to:
// section fragments, guidance, saves and AI assessments.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/cv-editor/internal/config"
	"github.com/jonathan/cv-editor/internal/db"
	"github.com/jonathan/cv-editor/internal/llm"
	"github.com/jonathan/cv-editor/internal/metrics"
	"github.com/jonathan/cv-editor/internal/quota"
	"github.com/jonathan/cv-editor/internal/server/middleware"
	"github.com/jonathan/cv-editor/internal/server/ratelimit"
	"github.com/jonathan/cv-editor/internal/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EntryStore persists CV section entries.
type EntryStore interface {
	ListEntries(ctx context.Context, userID uuid.UUID, sectionID string, variantID *uuid.UUID) ([]db.Entry, error)
	GetEntry(ctx context.Context, userID, entryID uuid.UUID) (*db.Entry, error)
	CreateEntry(ctx context.Context, e *db.Entry) error
	UpdateEntry(ctx context.Context, e *db.Entry) (bool, error)
	DeleteEntry(ctx context.Context, userID, entryID uuid.UUID) (bool, error)
	ReorderEntries(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
}

// QuotaTracker counts server-side assessments per user.
type QuotaTracker interface {
	Peek(ctx context.Context, userID string) (quota.Status, error)
	Consume(ctx context.Context, userID string) (quota.Status, error)
}

// Assessor runs an assessment prompt on the server-side model.
type Assessor interface {
	Assess(ctx context.Context, prompt string, tier llm.ModelTier) (*types.AssessmentResult, error)
}

// Options holds server settings.
type Options struct {
	Port             int
	BrowserModelType string
	BrowserModel     string
	AllowedOrigin    string
	CSRFSecret       string
	RateLimit        *ratelimit.Config
}

// Deps are the server's collaborators. Quota and Assessor may be nil, in
// which case every assessment is sent to the browser.
type Deps struct {
	Entries  EntryStore
	Quota    QuotaTracker
	Assessor Assessor
	Tokens   *JWTService
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	opts       Options
	entries    EntryStore
	quota      QuotaTracker
	assessor   Assessor
	tokens     *JWTService
	csrf       *CSRF
	limiter    *ratelimit.Limiter
	closers    []func()
}

// New creates a server from its collaborators.
func New(opts Options, deps Deps) (*Server, error) {
	if deps.Entries == nil {
		return nil, fmt.Errorf("entry store is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if opts.CSRFSecret == "" {
		return nil, fmt.Errorf("CSRF secret is required")
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.Port == 0 {
		opts.Port = 8080
	}

	s := &Server{
		opts:     opts,
		entries:  deps.Entries,
		quota:    deps.Quota,
		assessor: deps.Assessor,
		tokens:   deps.Tokens,
		csrf:     NewCSRF(opts.CSRFSecret),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Open connects the database, the quota store and the model from the
// environment configuration and creates a server.
func Open(ctx context.Context, cfg *config.ServerConfig, jwtCfg *config.JWTConfig) (*Server, error) {
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closers := []func(){database.Close}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if err := database.Migrate(ctx); err != nil {
		closeAll()
		return nil, err
	}

	deps := Deps{Entries: database, Tokens: NewJWTService(jwtCfg)}

	if cfg.RedisURL != "" {
		rdb, err := quota.Connect(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.Quota = quota.New(rdb, cfg.DailyQuota)
	} else {
		log.Printf("[server] REDIS_URL not set; all assessments run in the browser")
	}

	if cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, llm.ConfigFromEnv(), cfg.GeminiAPIKey)
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		deps.Assessor = llm.NewAssessor(client)
	} else {
		log.Printf("[server] GEMINI_API_KEY not set; all assessments run in the browser")
	}

	s, err := New(Options{
		Port:             cfg.Port,
		BrowserModelType: cfg.BrowserModelType,
		BrowserModel:     cfg.BrowserModel,
		AllowedOrigin:    cfg.AllowedOrigin,
		CSRFSecret:       cfg.CSRFSecret,
		RateLimit:        ratelimit.LoadConfig(),
	}, deps)
	if err != nil {
		closeAll()
		return nil, err
	}
	s.closers = closers
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	auth := middleware.AuthMiddleware(s.tokens.AsTokenValidator())
	protected := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /guidance", s.handleGuidance)
	mux.Handle("GET /session", protected(s.handleSession))
	mux.Handle("GET /section-form", protected(s.handleSectionForm))
	mux.Handle("POST /save-section", protected(s.handleSaveSection))
	mux.Handle("POST /reorder-section", protected(s.handleReorderSection))
	mux.Handle("POST /assess-section", protected(s.handleAssessSection))

	return s.withMetrics(s.withRateLimit(s.withLogging(s.withCORS(mux))))
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("[server] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.Close()
	log.Println("[server] stopped")
	return nil
}

// Close stops background work and releases connections.
func (s *Server) Close() {
	s.limiter.Stop()
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.opts.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.limiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			metrics.RateLimited.WithLabelValues(routeLabel(r.URL.Path)).Inc()
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

var knownRoutes = map[string]bool{
	"/health": true, "/metrics": true, "/guidance": true, "/session": true,
	"/section-form": true, "/save-section": true, "/reorder-section": true, "/assess-section": true,
}

func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := routeLabel(r.URL.Path)
		metrics.HTTPRequests.WithLabelValues(route, fmt.Sprintf("%d", rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// clientID identifies the client for rate limiting by IP address.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	resp := map[string]any{
		"success": false,
		"error":   "Rate limit exceeded. Please try again later.",
		"limit":   info.Limit,
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		resp["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}
	log.Printf("[rate-limit] limit %d exceeded, retry after %v", info.Limit, info.RetryAfter)
	s.jsonResponse(w, http.StatusTooManyRequests, resp)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.entries.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			log.Printf("[server] health check failed: %v", err)
			s.jsonResponse(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[server] error encoding JSON response: %v", err)
	}
}

func (s *Server) htmlResponse(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(html)); err != nil {
		log.Printf("[server] error writing HTML response: %v", err)
	}
}
