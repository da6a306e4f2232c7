package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pedroarca/censoapi/internal/config"
)

// serve runs the HTTP server and the background workers until SIGINT or SIGTERM.
func (app *app) serve(ctx context.Context, watcher *config.Watcher) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 40 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.background(func() { app.purgeExpiredSessions(ctx) })
	if watcher != nil {
		app.background(func() {
			if err := watcher.Run(ctx); err != nil {
				app.logger.Warn("config hot reload disabled", "error", err)
			}
		})
	}

	shutdownError := make(chan error)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit
		app.logger.Info("shutting down server", "signal", s.String())

		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownError <- err
			return
		}

		app.logger.Info("completing background tasks", "addr", srv.Addr)
		app.wg.Wait()
		shutdownError <- nil
	}()

	app.logger.Info("starting server",
		"addr", srv.Addr,
		"env", app.config.Env,
		"version", version,
		"timezone", app.config.Timezone,
		"rate_limit_enabled", app.config.RateLimit.Enabled,
	)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error("server error", "error", err)
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("server stopped", "addr", srv.Addr)

	return nil
}

// purgeExpiredSessions deletes expired sessions every purge interval until ctx ends.
func (app *app) purgeExpiredSessions(ctx context.Context) {
	interval := app.config.Session.PurgeInterval
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.models.Sessions.DeleteExpired(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					app.logger.Error("failed to purge expired sessions", "error", err)
				}
				continue
			}
			if n > 0 {
				app.logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
