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

	"github.com/starford/velocity/internal/api"
	"github.com/starford/velocity/internal/mcpserver"
	"github.com/starford/velocity/internal/notebook"
	"github.com/starford/velocity/internal/sse"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds the JSON logger. The returned func closes the log file.
func (a *application) logger() (*slog.Logger, func(), error) {
	out, closeFn := a.logOut, func() {}
	if path := a.config.App.LogFile; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closeFn = f, func() { _ = f.Close() }
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	return logger, closeFn, nil
}

func (a *application) openNotebook(logger *slog.Logger, opts ...notebook.Option) (*notebook.NoteBook, error) {
	cfg := a.config
	logger.Info("Configuration loaded",
		slog.String("notes_dir", cfg.Notebook.Path),
		slog.String("extension", cfg.Notebook.Extension),
		slog.Any("extensions", cfg.Notebook.Extensions),
		slog.Any("exclude", cfg.Notebook.Exclude),
		slog.String("log_level", cfg.App.LogLevel.String()))

	opts = append([]notebook.Option{notebook.WithLogger(logger)}, opts...)
	nb, err := notebook.Open(cfg.Notebook.Options(), opts...)
	if err != nil {
		return nil, fmt.Errorf("open notebook: %w", err)
	}
	return nb, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog, err := app.logger()
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	broker := sse.NewBroker(time.Second, logger)
	defer broker.Close()

	nb, err := app.openNotebook(logger, notebook.WithOnChange(broker.PublishChange))
	if err != nil {
		return err
	}
	defer nb.Close()

	apiRouter := api.NewRouter(nb, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Mount("/health", api.NewHealthRouter(nb))
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server",
			slog.String("address", cfg.App.HTTP.Address()),
			slog.Bool("auth", cfg.Auth.AuthEnabled()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		waitForShutdown(gCtx, logger)

		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// Streaming clients never finish on their own.
		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the notebook over MCP on stdin/stdout. Logs never go to
// stdout in this mode.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger, closeLog, err := app.logger()
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	nb, err := app.openNotebook(logger)
	if err != nil {
		return err
	}
	defer nb.Close()

	srv := mcpserver.New(nb, app.version)
	logger.Info("Starting MCP server on stdio")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

// List writes the titles of notes matching query to w, most recently
// modified first. An empty query lists every note.
func List(ctx context.Context, w io.Writer, query string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(io.Discard)}, opts...))
	if err != nil {
		return err
	}
	logger, closeLog, err := app.logger()
	if err != nil {
		return err
	}
	defer closeLog()

	nb, err := app.openNotebook(logger)
	if err != nil {
		return err
	}
	defer nb.Close()

	for _, n := range nb.Search(query) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := fmt.Fprintln(w, n.Title); err != nil {
			return err
		}
	}
	return nil
}

func waitForShutdown(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}
