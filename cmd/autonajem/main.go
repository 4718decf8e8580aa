package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/config"
	"github.com/mwierzba/autonajem/internal/db"
	"github.com/mwierzba/autonajem/internal/frontend"
	"github.com/mwierzba/autonajem/internal/session"
	"github.com/mwierzba/autonajem/internal/urlsync"
	"github.com/mwierzba/autonajem/internal/web"
	"github.com/mwierzba/autonajem/internal/workflow"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(level, logPath string) (func(), error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		slogLevel = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: slogLevel}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading configuration: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	// Open the local state database.
	database, err := db.Open(cfg.State.Path)
	if err != nil {
		slog.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		slog.Error("failed to ensure state schema", "error", err)
		os.Exit(1)
	}

	slog.Info("state database ready", "path", cfg.State.Path)

	// The session manager needs the client and the auth middleware needs the
	// session, so the token source closes over a pointer filled in below.
	var sess *session.Manager
	client := api.New(cfg.Remote.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: cfg.Remote.Timeout}),
		api.WithMiddleware(
			api.RequestIDMiddleware(),
			api.LoggingMiddleware(slog.Default()),
			api.AuthMiddleware(
				func() string {
					if sess == nil {
						return ""
					}
					return sess.Token()
				},
				func() {
					if sess != nil && sess.CurrentUser() != nil {
						sess.Invalidate(context.Background())
						sess.RequestLoginPrompt()
					}
				},
			),
		))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err = session.NewManager(ctx, database, client, slog.Default())
	if err != nil {
		slog.Error("failed to restore session", "error", err)
		os.Exit(1)
	}
	if user := sess.CurrentUser(); user != nil {
		slog.Info("session restored", "username", user.Username)
	}

	navigator := &web.Navigator{}
	urls := urlsync.New(navigator, nil)

	controller := frontend.NewController(ctx, client, sess, urls, slog.Default(),
		frontend.WithDebounce(cfg.Catalog.Debounce),
		frontend.WithRowsPerPage(cfg.Catalog.RowsPerPage))
	defer controller.Close()

	editor := workflow.NewEditor(client, database, slog.Default(), cfg.Upload.MaxBytes)

	router, err := web.NewRouter(&web.Server{
		DB:         database,
		Client:     client,
		Session:    sess,
		Catalog:    controller,
		Editor:     editor,
		URLState:   urls,
		Nav:        navigator,
		RemoteBase: cfg.Remote.BaseURL,
	})
	if err != nil {
		slog.Error("failed to set up web router", "error", err)
		os.Exit(1)
	}

	handler := web.LoggingMiddleware(router)

	server := &http.Server{
		Addr:              cfg.Web.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Web.ListenAddr, "remote", cfg.Remote.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing state database")
}
