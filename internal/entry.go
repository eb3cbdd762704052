// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quire/internal/api"
	"github.com/starford/quire/internal/index"
	"github.com/starford/quire/internal/mcpserver"
	"github.com/starford/quire/internal/noteservice"
	"github.com/starford/quire/internal/ollama"
	"github.com/starford/quire/internal/prompt"
	"github.com/starford/quire/internal/sse"
	"github.com/starford/quire/internal/storage"
	"github.com/starford/quire/internal/workspace"
)

var errConfigRequired = errors.New("config is required")

type vault struct {
	store *storage.FS
	db    *index.DB
}

// openVault prepares the vault directory, storage and a synced index.
func openVault(cfg *Config, logger *slog.Logger) (*vault, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	if _, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return &vault{store: store, db: db}, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// newPrompts returns the prompt service, or nil when no model is configured.
func newPrompts(cfg *Config, store *storage.FS, logger *slog.Logger) prompt.Service {
	if !cfg.LLM.Enabled {
		return nil
	}
	client := ollama.New(cfg.LLM.BaseURL,
		ollama.WithModel(cfg.LLM.Model),
		ollama.WithEndpoint(ollama.Endpoint(cfg.LLM.Endpoint)),
		ollama.WithStream(cfg.LLM.Stream),
		ollama.WithTimeout(cfg.LLM.Timeout),
	)
	logger.Info("LLM backend configured",
		slog.String("base_url", cfg.LLM.BaseURL),
		slog.String("model", client.Model()),
		slog.String("endpoint", cfg.LLM.Endpoint))
	return prompt.NewProcessor(prompt.NewLibrary(store, cfg.Vault.PromptsDir), client, logger)
}

// Run starts the editor server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("llm_enabled", cfg.LLM.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	v, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer v.db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	notes := noteservice.NewService(v.store, v.db, logger,
		noteservice.WithNotifier(broker.PublishNoteEvent))
	if err := notes.EnsureLayout(ctx); err != nil {
		return fmt.Errorf("prepare vault: %w", err)
	}

	ws := workspace.New(notes, newPrompts(cfg, v.store, logger), broker, logger, workspace.Config{
		UndoLimit:     cfg.Editor.UndoLimit,
		AutoSave:      cfg.Editor.AutoSave,
		PromptTimeout: cfg.LLM.Timeout,
	})

	apiRouter := api.NewRouter(notes, ws, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Editor session loop.
	g.Go(func() error {
		return ws.Run(gCtx)
	})

	// Start file watcher; outside edits reach the open note through it.
	g.Go(func() error {
		watcher := index.NewWatcher(v.db, v.store, v.store.Root(), logger, func(kind, path string) {
			broker.PublishNoteEvent(kind, path)
			switch kind {
			case noteservice.EventUpdated:
				_ = ws.Reload(gCtx, []string{path})
			case noteservice.EventDeleted:
				if !v.store.Exists(path) {
					_ = ws.Relocate(path, "")
				}
			}
		})
		return watcher.Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	// The home note is the first thing an editor sees.
	if _, err := ws.Open(gCtx, noteservice.HomeNote); err != nil {
		logger.Warn("open home note failed", slog.String("error", err.Error()))
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once a signal arrives so the workspace and
// watcher stop with the HTTP server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the vault to an MCP client over stdio. Logs go to stderr
// since stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	v, err := openVault(cfg, logger)
	if err != nil {
		return err
	}
	defer v.db.Close()

	notes := noteservice.NewService(v.store, v.db, logger)
	if err := notes.EnsureLayout(ctx); err != nil {
		return fmt.Errorf("prepare vault: %w", err)
	}

	logger.Info("MCP server starting", slog.String("vault_path", cfg.Vault.Path))
	return mcpserver.New(notes, app.version).ServeStdio()
}
