// Command router runs the OpenAI-compatible gateway.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/HeiSir2014/OpenAIRouter/internal/auth"
	"github.com/HeiSir2014/OpenAIRouter/internal/config"
	"github.com/HeiSir2014/OpenAIRouter/internal/credits"
	"github.com/HeiSir2014/OpenAIRouter/internal/orchestrator"
	"github.com/HeiSir2014/OpenAIRouter/internal/provider"
	"github.com/HeiSir2014/OpenAIRouter/internal/provider/anthropic"
	"github.com/HeiSir2014/OpenAIRouter/internal/provider/openai"
	"github.com/HeiSir2014/OpenAIRouter/internal/ratelimit"
	"github.com/HeiSir2014/OpenAIRouter/internal/server"
	"github.com/HeiSir2014/OpenAIRouter/internal/telemetry"
	"github.com/HeiSir2014/OpenAIRouter/internal/tokens"
	"github.com/HeiSir2014/OpenAIRouter/internal/usage"
)

const serviceName = "openai-router"

func main() {
	// A .env file is a development convenience, not a requirement.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("ROUTER_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(serviceName, logger)
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("tracer shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	// Compiled-in adapter types. Every provider in the config must use
	// one of these.
	provider.RegisterFactory(openai.Factory())
	provider.RegisterFactory(anthropic.Factory())

	registry, err := provider.NewRegistry(cfg.Providers,
		provider.WithStrict(cfg.Routing.Strict),
		provider.WithLogger(logger),
	)
	if err != nil {
		log.Fatalf("failed to build provider registry: %v", err)
	}

	sink, reader, cleanup, err := buildUsageBackend(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize usage backend: %v", err)
	}
	defer cleanup()

	seed := make(map[string]float64, len(cfg.Keys))
	for _, key := range cfg.Keys {
		if key.Credits != nil {
			seed[key.Name] = *key.Credits
		}
	}
	ledger := credits.NewMemoryLedger(seed, cfg.Credits.DefaultBalance)

	var authenticator *auth.Authenticator
	if len(cfg.Keys) > 0 {
		authenticator = auth.New(cfg.Keys)
	} else {
		logger.Warn("no API keys configured, requests are unauthenticated")
	}

	limiter := ratelimit.NewLimiter()
	ipLimiter := ratelimit.NewIPLimiter(cfg.RateLimit.IPLimit, cfg.RateLimit.IPResetWindow())

	counter := tokens.NewRegistry()
	counter.Register(tokens.NewTiktokenCounter())

	orch := orchestrator.New(orchestrator.Config{
		Registry: registry,
		Ledger:   ledger,
		Usage:    sink,
		Logger:   logger,
	})

	srv := server.New(server.Config{
		Server:        cfg.Server,
		RateLimit:     cfg.RateLimit,
		Orchestrator:  orch,
		Registry:      registry,
		Authenticator: authenticator,
		Limiter:       limiter,
		IPLimiter:     ipLimiter,
		Counter:       counter,
		Usage:         reader,
		Telemetry:     cfg.Telemetry.Enabled,
		Logger:        logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Expired rate-limit windows accumulate for idle callers; sweep them
	// out periodically.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Sweep()
				ipLimiter.Sweep()
			}
		}
	}()

	logger.Info("gateway configured",
		slog.Int("providers", len(cfg.Providers)),
		slog.Int("keys", len(cfg.Keys)),
		slog.String("usage_backend", usageBackendName(cfg)),
		slog.Bool("strict_routing", cfg.Routing.Strict),
	)

	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// buildUsageBackend selects the usage sink from configuration. The
// returned reader is nil for write-only backends.
func buildUsageBackend(cfg *config.Config, logger *slog.Logger) (usage.Sink, usage.Reader, func(), error) {
	switch cfg.Usage.Backend {
	case "", "memory":
		store := usage.NewMemoryStore()
		return store, store, func() {}, nil

	case "sql":
		store, err := usage.NewSQLStore(usage.SQLConfig{
			Driver: cfg.Usage.Database.Driver,
			DSN:    cfg.Usage.Database.DSN,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Error("closing usage store failed", slog.String("error", err.Error()))
			}
		}
		return store, store, cleanup, nil

	case "redis":
		pub, err := usage.NewRedisPublisher(usage.RedisConfig{
			Addr:     cfg.Usage.Redis.Addr,
			Password: cfg.Usage.Redis.Password,
			DB:       cfg.Usage.Redis.DB,
			Stream:   cfg.Usage.Redis.Stream,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		cleanup := func() {
			if err := pub.Close(); err != nil {
				logger.Error("closing usage publisher failed", slog.String("error", err.Error()))
			}
		}
		return pub, nil, cleanup, nil
	}

	// config.Validate rejects anything else before we get here.
	store := usage.NewMemoryStore()
	return store, store, func() {}, nil
}

func usageBackendName(cfg *config.Config) string {
	if cfg.Usage.Backend == "" {
		return "memory"
	}
	return cfg.Usage.Backend
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
