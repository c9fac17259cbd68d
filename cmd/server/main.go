package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-tutor/internal/api"
	"github.com/p-n-ai/pai-tutor/internal/chat"
	"github.com/p-n-ai/pai-tutor/internal/content"
	"github.com/p-n-ai/pai-tutor/internal/learner"
	"github.com/p-n-ai/pai-tutor/internal/mastery"
	"github.com/p-n-ai/pai-tutor/internal/platform/cache"
	"github.com/p-n-ai/pai-tutor/internal/platform/config"
	"github.com/p-n-ai/pai-tutor/internal/platform/database"
	"github.com/p-n-ai/pai-tutor/internal/policy"
	"github.com/p-n-ai/pai-tutor/internal/tutor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		// Keep serving so health checks and clients see a clean 503.
		slog.Error("tutor failed to initialize", "error", err)
	}
	defer a.close()

	go a.registry.Run(ctx)

	gw, err := startChat(ctx, cfg, a.registry)
	if err != nil {
		slog.Error("chat channels failed to start", "error", err)
	}
	if gw != nil {
		defer gw.StopAll()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler(cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// app holds everything the server wires together. registry is nil when
// initialization failed.
type app struct {
	catalog  *content.Catalog
	registry *tutor.Registry
	checks   map[string]api.Check
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) handler(cfg *config.Config) http.Handler {
	opts := api.Options{
		ExposeAnswers: cfg.Tutor.ExposeAnswers,
		Checks:        a.checks,
	}
	if a.catalog != nil {
		opts.Catalog = a.catalog
	}
	return api.NewServer(a.registry, opts).Handler()
}

// newApp loads the catalog, connects the configured store and builds the
// session registry. The returned app is always usable; on error its registry
// is nil.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{checks: map[string]api.Check{}}

	a.catalog = content.Load(content.Paths{
		Concepts:  cfg.ContentPath(cfg.Content.Concepts),
		Questions: cfg.ContentPath(cfg.Content.Questions),
		Examples:  cfg.ContentPath(cfg.Content.Examples),
	})

	store, events, err := a.connectStore(ctx, cfg)
	if err != nil {
		return a, err
	}

	estimator, err := mastery.New(cfg.Tutor.Estimator, a.catalog)
	if err != nil {
		return a, err
	}

	reg, err := tutor.NewRegistry(tutor.RegistryConfig{
		Content:      a.catalog,
		Policy:       policy.NewHardestFirst(a.catalog),
		Estimator:    estimator,
		Store:        store,
		Events:       events,
		SessionTTL:   cfg.SessionTTL(),
		MaxSessions:  cfg.Tutor.MaxSessions,
		PseudonymKey: []byte(cfg.Tutor.PseudonymKey),
	})
	if err != nil {
		return a, fmt.Errorf("creating registry: %w", err)
	}
	a.registry = reg

	slog.Info("tutor initialized",
		"store", cfg.Store.Backend,
		"estimator", cfg.Tutor.Estimator,
		"session_ttl", cfg.SessionTTL(),
	)
	return a, nil
}

func (a *app) connectStore(ctx context.Context, cfg *config.Config) (learner.Store, tutor.EventLogger, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.checks["database"] = db.HealthCheck

		if err := db.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		store, err := learner.NewPostgresStore(db.Pool)
		if err != nil {
			return nil, nil, err
		}
		return store, tutor.NewPostgresEventLogger(db.Pool), nil

	case config.StoreRedis:
		c, err := cache.New(ctx, cfg.Cache.URL, "")
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { c.Close() })
		a.checks["cache"] = c.HealthCheck

		store, err := learner.NewRedisStore(c.Client, c.Key("learner"), cfg.CacheTTL())
		if err != nil {
			return nil, nil, err
		}
		return store, tutor.NopEventLogger{}, nil

	default:
		return learner.NewMemoryStore(), tutor.NopEventLogger{}, nil
	}
}

// startChat connects the Telegram channel when a bot token is configured. It
// returns a nil gateway when no channel is enabled.
func startChat(ctx context.Context, cfg *config.Config, reg *tutor.Registry) (*chat.Gateway, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, nil
	}
	tg, err := chat.NewTelegramChannel(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}

	gw := chat.NewGateway()
	gw.Register("telegram", tg)
	bot := chat.NewBot(reg, gw)

	if err := gw.StartAll(ctx, func(msg chat.InboundMessage) {
		bot.HandleMessage(ctx, msg)
	}); err != nil {
		return gw, err
	}
	return gw, nil
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and LEARN_LOG_FORMAT.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
