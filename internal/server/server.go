// Package server exposes the gateway's HTTP surface: the
// OpenAI-compatible completion and model endpoints, authentication,
// per-caller rate limiting, and the operational routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/HeiSir2014/OpenAIRouter/internal/auth"
	"github.com/HeiSir2014/OpenAIRouter/internal/config"
	"github.com/HeiSir2014/OpenAIRouter/internal/domain"
	"github.com/HeiSir2014/OpenAIRouter/internal/provider"
	"github.com/HeiSir2014/OpenAIRouter/internal/ratelimit"
	"github.com/HeiSir2014/OpenAIRouter/internal/tokens"
	"github.com/HeiSir2014/OpenAIRouter/internal/usage"
)

// Completer runs the completion pipeline for one request.
type Completer interface {
	Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error)
}

// Config collects the server's collaborators. Orchestrator and Registry
// are required; a nil Authenticator disables authentication, a nil
// Usage reader hides the usage route, and the rest default sensibly.
type Config struct {
	Server    config.ServerConfig
	RateLimit config.RateLimitConfig

	Orchestrator  Completer
	Registry      *provider.Registry
	Authenticator *auth.Authenticator
	Limiter       *ratelimit.Limiter
	IPLimiter     *ratelimit.IPLimiter
	Counter       *tokens.Registry
	Usage         usage.Reader
	Telemetry     bool
	Logger        *slog.Logger
}

// Server is the gateway's HTTP front end.
type Server struct {
	Router *chi.Mux

	orchestrator Completer
	registry     *provider.Registry
	auth         *auth.Authenticator
	limiter      *ratelimit.Limiter
	counter      *tokens.Registry
	estimator    tokens.Estimator
	usage        usage.Reader

	port     int
	shutdown time.Duration
	defaults ratelimit.Limit
	logger   *slog.Logger
}

// New builds the router and wires the middleware chain.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.NewLimiter()
	}
	if cfg.Counter == nil {
		reg := tokens.NewRegistry()
		reg.Register(tokens.NewTiktokenCounter())
		cfg.Counter = reg
	}

	s := &Server{
		orchestrator: cfg.Orchestrator,
		registry:     cfg.Registry,
		auth:         cfg.Authenticator,
		limiter:      cfg.Limiter,
		counter:      cfg.Counter,
		estimator:    tokens.NewCharEstimator(),
		usage:        cfg.Usage,
		port:         cfg.Server.Port,
		shutdown:     cfg.Server.ShutdownTimeoutOrDefault(),
		defaults:     ratelimit.Limit{RPM: cfg.RateLimit.RPM, TPM: cfg.RateLimit.TPM},
		logger:       cfg.Logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestIDHeader)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(chimiddleware.Recoverer)
	if cfg.Telemetry {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "router")
		})
	}
	if cfg.IPLimiter != nil {
		r.Use(IPLimitMiddleware(cfg.IPLimiter))
	}
	r.Use(TimeoutMiddleware(cfg.Server.RequestTimeoutOrDefault()))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, domain.ErrNotFound(fmt.Sprintf("unknown route %s %s", r.Method, r.URL.Path)))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, domain.ErrValidationf("method %s is not allowed for %s", r.Method, r.URL.Path).
			WithStatusCode(http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(AuthMiddleware(s.auth))
		}
		r.Use(RateLimitHeaders)

		r.Post("/v1/chat/completions", s.handleChatCompletions)
		r.Get("/v1/models", s.handleListModels)
		r.Get("/v1/models/{model}", s.handleGetModel)
		r.Post("/v1/tokens/count", s.handleCountTokens)
		if s.usage != nil {
			r.Get("/v1/usage", s.handleUsage)
		}
	})

	s.Router = r
	return s
}

// Start serves until ctx is cancelled, then drains in-flight requests
// for up to the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", slog.Duration("drain", s.shutdown))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
