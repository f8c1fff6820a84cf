// Package server provides the HTTP API for composing and submitting candidate reports.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/report-composer/internal/db"
	"github.com/jonathan/report-composer/internal/logging"
	"github.com/jonathan/report-composer/internal/pipeline"
	"github.com/jonathan/report-composer/internal/results"
	"github.com/jonathan/report-composer/internal/server/middleware"
	"github.com/jonathan/report-composer/internal/server/ratelimit"
	"github.com/jonathan/report-composer/internal/submission"
)

// Backend is the order backend used by the server.
type Backend interface {
	pipeline.Backend
	pipeline.OrderSource
}

// SubmissionStore records and looks up submission attempts. *db.DB satisfies it.
type SubmissionStore interface {
	pipeline.Recorder
	GetSubmission(ctx context.Context, submissionID uuid.UUID) (*db.Submission, error)
	ListSubmissions(ctx context.Context, orderID string, limit int) ([]db.Submission, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	router         chi.Router
	backend        Backend
	store          SubmissionStore
	engine         *pipeline.Engine
	rateLimiter    *ratelimit.Limiter
	locks          *keyedMutex
	summaryLabel   string
	maxUploadBytes int64
	logger         *zap.Logger
}

// Config holds server configuration
type Config struct {
	Port           int
	MaxUploadBytes int64
	APIKey         middleware.KeyVerifier
	RateLimit      *ratelimit.Config
	Pipeline       pipeline.Options
	Logger         *zap.Logger
}

// New creates a new server instance. store may be nil, in which case submissions
// are not recorded and the audit endpoint answers 404.
func New(cfg Config, b Backend, store SubmissionStore) *Server {
	logger := logging.OrNop(cfg.Logger)
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = results.MaxFileSize
	}
	if cfg.Pipeline.SummaryLabel == "" {
		cfg.Pipeline.SummaryLabel = submission.DefaultSummaryLabel
	}
	cfg.Pipeline.Logger = logger
	if store != nil {
		cfg.Pipeline.Recorder = store
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = ratelimit.LoadConfig()
	}

	s := &Server{
		backend:        b,
		store:          store,
		engine:         pipeline.New(b, cfg.Pipeline),
		rateLimiter:    ratelimit.NewLimiter(cfg.RateLimit),
		locks:          newKeyedMutex(),
		summaryLabel:   cfg.Pipeline.SummaryLabel,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.withCORS)
	r.Use(s.withLogging)
	r.Use(s.withRateLimit)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.APIKey))

		r.Route("/orders/{orderID}/candidates/{candidateID}", func(r chi.Router) {
			r.Post("/report", s.handleReport)
			r.Post("/submit", s.handleSubmit)
			r.Post("/submit/stream", s.handleSubmitStream)
		})
		r.Get("/orders/{orderID}/submissions", s.handleListSubmissions)
		r.Get("/submissions/{id}", s.handleGetSubmission)
	})
	s.router = r

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 300 * time.Second, // Long timeout for multi-file submissions
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.rateLimiter.Stop()
	s.logger.Info("Server stopped")
	return nil
}

// Close releases background resources without serving.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		w.Header().Set("Access-Control-Expose-Headers", "X-Skipped-Artifacts, X-Page-Count")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("Request completed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("Error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// This uses the IP address from RemoteAddr; forwarded headers are not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		retry := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = retry
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))
	}

	s.logger.Warn("Rate limit exceeded",
		zap.Int("limit", info.Limit),
		zap.Time("reset", info.ResetTime))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
