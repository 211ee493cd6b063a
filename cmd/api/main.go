// Package main is the entrypoint for the Shelfkeep API server.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/shelfkeep/shelfkeep/internal/auth"
	"github.com/shelfkeep/shelfkeep/internal/cache"
	"github.com/shelfkeep/shelfkeep/internal/config"
	"github.com/shelfkeep/shelfkeep/internal/graph"
	"github.com/shelfkeep/shelfkeep/internal/handler"
	"github.com/shelfkeep/shelfkeep/internal/metrics"
	"github.com/shelfkeep/shelfkeep/internal/middleware"
	"github.com/shelfkeep/shelfkeep/internal/repository"
	"github.com/shelfkeep/shelfkeep/internal/server"
	"github.com/shelfkeep/shelfkeep/internal/service"
)

func main() {
	ctx := context.Background()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	store, err := repository.Open(ctx, repository.Options{
		Driver:      cfg.StorageDriver,
		SQLitePath:  cfg.SQLitePath,
		DatabaseURL: cfg.DatabaseURL,
		Fallback:    cfg.StorageFallback,
		Logger:      logger,
	})
	if err != nil {
		logger.Error(
			"failed to open storage",
			slog.String("driver", cfg.StorageDriver),
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}

	recorder := metrics.NewInMemory()

	// The identity cache only fronts a durable store; a volatile store is
	// already in memory.
	var cacheClient *cache.Cache
	var userCache service.UserCache
	if cfg.RedisURL != "" && store.Durable() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cfg.IdentityCacheTTL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			_ = store.Close()
			os.Exit(1)
		}
		userCache = cacheClient
		logger.Info("connected to Redis")
	}

	identities := service.NewIdentityService(store, userCache, recorder, logger)
	books := service.NewBookService(store, identities, recorder)
	executor := graph.NewExecutor(graph.NewResolver(books, identities), logger, recorder)

	var readiness handler.HealthChecker
	if cacheClient != nil {
		readiness = cacheClient
	}

	r := setupRouter(routes{
		banner:   handler.New(storageName(cfg, store)),
		health:   handler.NewHealthHandler(store, readiness),
		metrics:  handler.NewMetricsHandler(recorder),
		graphql:  graph.NewServer(executor),
		verifier: auth.NewTokenVerifier(cfg.AuthJWTSecret, cfg.AuthIssuer, cfg.AuthAudience),
	}, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("storage", func(ctx context.Context) error {
		return store.Close()
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(ctx context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage", storageName(cfg, store),
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// storageName reports the backend actually in use, which differs from the
// configured driver after a fallback.
func storageName(cfg *config.Config, store repository.Store) string {
	if !store.Durable() {
		return repository.DriverMemory
	}
	return cfg.StorageDriver
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
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

// routes collects the handlers mounted by setupRouter.
type routes struct {
	banner   *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	graphql  http.Handler
	verifier middleware.Verifier
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(rt routes, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, "/healthz", "/readyz", "/metrics"))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))

	r.Get("/healthz", rt.health.Healthz)
	r.Get("/readyz", rt.health.Readyz)
	r.Get("/metrics", rt.metrics.Metrics)
	r.Get("/", rt.banner.Hello)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r.Route("/graphql", func(r chi.Router) {
		r.Use(middleware.CORS(corsCfg))
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
		r.Use(middleware.Identity(middleware.IdentityConfig{
			Logger:     logger,
			Verifier:   rt.verifier,
			CookieName: cfg.AuthCookieName,
		}))

		r.Get("/", rt.graphql.ServeHTTP)
		r.Post("/", rt.graphql.ServeHTTP)
	})

	r.NotFound(rt.banner.NotFound)
	r.MethodNotAllowed(rt.banner.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL drops the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

// sanitizeError replaces connection URLs and password parameters in err.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
