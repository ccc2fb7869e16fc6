package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-worksheet/internal/ai"
	"github.com/p-n-ai/pai-worksheet/internal/curriculum"
	"github.com/p-n-ai/pai-worksheet/internal/events"
	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/httpapi"
	"github.com/p-n-ai/pai-worksheet/internal/platform/cache"
	"github.com/p-n-ai/pai-worksheet/internal/platform/config"
	"github.com/p-n-ai/pai-worksheet/internal/platform/database"
	"github.com/p-n-ai/pai-worksheet/internal/session"
)

const providerProbeTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	catalog, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	slog.Info("curriculum loaded", "grades", len(catalog.Grades()))

	router, closeProviders, err := newAIRouter(ctx, cfg.AI)
	if err != nil {
		return err
	}
	defer closeProviders()
	if !router.HasProvider() {
		slog.Warn("no AI provider configured; generation will report a configuration error")
	} else {
		probeCtx, cancel := context.WithTimeout(ctx, providerProbeTimeout)
		if err := router.HealthCheck(probeCtx); err != nil {
			slog.Warn("AI provider probe failed", "error", err)
		}
		cancel()
	}

	var checkers []httpapi.Checker

	budget := ai.BudgetChecker(ai.NewInMemoryBudget(int64(cfg.Budget.TokenLimit)))
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("connecting to cache: %w", err)
		}
		defer c.Close()
		budget = ai.NewRedisBudget(c.Client, int64(cfg.Budget.TokenLimit), cfg.BudgetWindow())
		checkers = append(checkers, c)
		slog.Info("token budget backed by cache", "limit", cfg.Budget.TokenLimit)
	}

	var eventLog events.Logger = events.Nop{}
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		pg := events.NewPostgres(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("preparing event table: %w", err)
		}
		eventLog = pg
		checkers = append(checkers, db)
		slog.Info("audit events stored in database")
	}

	gen := generation.NewLLMGenerator(router,
		generation.WithBudget(budget),
		generation.WithConfig(generation.Config{
			SetTemperature:     cfg.AI.SetTemperature,
			ReplaceTemperature: cfg.AI.ReplaceTemperature,
			MaxTokens:          cfg.AI.MaxTokens,
		}),
	)

	sessions := session.NewManager(
		session.Deps{Generator: gen, Catalog: catalog, Events: eventLog},
		session.WithTTL(cfg.SessionTTL()),
	)
	go sessions.Run(ctx, 0)

	api := httpapi.NewServer(sessions, gen, catalog,
		httpapi.WithCheckers(checkers...),
		httpapi.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "providers", router.Providers())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newLogger builds the process logger: JSON by default, text for local runs.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func loadCatalog(path string) (*curriculum.Catalog, error) {
	catalog, err := curriculum.NewLoader(path)
	if err != nil {
		return nil, fmt.Errorf("loading curriculum from %q: %w", path, err)
	}
	return catalog, nil
}

// newAIRouter registers every configured provider in fallback order. The returned func
// releases SDK clients.
func newAIRouter(ctx context.Context, cfg config.AIConfig) (*ai.Router, func(), error) {
	router := ai.NewRouter()
	closers := []func() error{}
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("failed to close AI client", "error", err)
			}
		}
	}

	if cfg.Google.APIKey != "" {
		switch cfg.Google.Client {
		case "sdk":
			p, err := ai.NewGenAIProvider(ctx, cfg.Google.APIKey, cfg.Google.Model)
			if err != nil {
				return nil, closeAll, fmt.Errorf("creating gemini client: %w", err)
			}
			closers = append(closers, p.Close)
			router.Register("gemini", p)
		default:
			router.Register("gemini", ai.NewGoogleProvider(cfg.Google.APIKey, ai.WithGoogleModel(cfg.Google.Model)))
		}
	}
	if cfg.OpenAI.APIKey != "" {
		router.Register("openai", ai.NewOpenAIProvider(cfg.OpenAI.APIKey, ai.WithDefaultModel(cfg.OpenAI.Model)))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, ai.WithDefaultModel(cfg.DeepSeek.Model)))
	}
	if cfg.Ollama.Enabled {
		router.Register("ollama", ai.NewOllamaProvider(cfg.Ollama.URL, ai.WithOllamaModel(cfg.Ollama.Model)))
	}

	return router, closeAll, nil
}
