package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sundayezeilo/microblog/internal/config"
	"github.com/sundayezeilo/microblog/internal/httpx"
	"github.com/sundayezeilo/microblog/internal/tweet"
)

// Pinger reports whether the tweet store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	config  *config.Config
	logger  *slog.Logger
	handler *tweet.Handler
	metrics http.Handler
	store   Pinger
	limiter *rate.Limiter
	server  *http.Server
}

// Deps are the collaborators a Server routes requests to. Metrics and Store
// are optional.
type Deps struct {
	Handler *tweet.Handler
	Metrics http.Handler
	Store   Pinger
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	}

	return &Server{
		config:  cfg,
		logger:  logger,
		handler: deps.Handler,
		metrics: deps.Metrics,
		store:   deps.Store,
		limiter: limiter,
	}
}

// Handler returns the fully wired HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.applyMiddleware(s.setupRoutes())
}

// Start serves HTTP until ctx is canceled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting http server",
			"addr", s.server.Addr,
			"env", s.config.App.Environment,
		)
		serverErrors <- s.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("shutdown requested", "cause", context.Cause(ctx).Error())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /x/health", s.healthCheckHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	mux.HandleFunc("GET /tweet", s.handler.ListTweets)
	mux.HandleFunc("POST /tweet", s.handler.PublishTweet)
	mux.HandleFunc("GET /discarded", s.handler.ListDiscarded)
	mux.HandleFunc("POST /discarded", s.handler.DiscardTweet)

	return mux
}

// applyMiddleware wraps the handler with middleware in the correct order.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	return httpx.Chain(
		httpx.Recovery(s.logger),   // Outermost: catch panics
		httpx.RequestID,            // Add request ID
		httpx.Logger(s.logger),     // Log requests, rejected ones included
		httpx.RateLimit(s.limiter), // nil when disabled
		httpx.CORS(nil),
	)(handler)
}

// healthCheckHandler reports the service identity and, when a store is
// configured, whether it answers a ping.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":  "ok",
		"service": s.config.Observability.ServiceName,
		"version": s.config.Observability.ServiceVersion,
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "health check: store unreachable", "error", err.Error())
			body["status"] = "degraded"
			httpx.WriteJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}

	httpx.WriteJSON(w, http.StatusOK, body)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}
