package main

import (
	"context"
	"database/sql"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pedroarca/censoapi/internal/config"
	"github.com/pedroarca/censoapi/internal/data"
	"github.com/pedroarca/censoapi/internal/mailer"
	"github.com/pedroarca/censoapi/internal/sheets"
	"github.com/pedroarca/censoapi/internal/ui"
)

const version = "v1.0.0"

// mailSender delivers templated email.
type mailSender interface {
	Send(to, templateName string, data any) error
}

// censoExporter writes admissions to a spreadsheet.
type censoExporter interface {
	ExportCenso(ctx context.Context, sheetName string, ingresos []*data.Ingreso, exportedBy string) (int, error)
	SpreadsheetID() string
}

type app struct {
	config    config.Config
	dynamic   atomic.Pointer[config.Dynamic] // settings swapped in by the config watcher
	location  *time.Location                 // timezone for calendar-day filters
	logger    *slog.Logger
	models    data.Models
	mailer    mailSender    // nil when SMTP is not configured
	exporter  censoExporter // nil when Sheets is not configured
	templates map[string]*template.Template
	wg        sync.WaitGroup // background tasks drained on shutdown
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var cfgPath string

	cmd := &cobra.Command{
		Use:          "censoapi",
		Short:        "Dashboard and API for the censo document intake pipeline",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true }) // only flags set on the command line

			base := cfg // defaults plus flags, the starting point of every reload

			if err := config.Load(&cfg, cfgPath, changed); err != nil {
				return err
			}
			return run(cmd.Context(), cfg, base, config.ResolvePath(cfgPath), changed)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "", "Path to a TOML config file (default ./censo.toml when present)")
	config.BindFlags(cmd.Flags(), &cfg)

	return cmd
}

func run(ctx context.Context, cfg, base config.Config, cfgPath string, changed map[string]bool) error {
	logger, logFile, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer logFile.Close() // flush the rotated log file on exit

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		logger.Error("error opening database connection", slog.String("error", err.Error()))
		return err
	}
	defer db.Close() // close the pool when the server stops
	logger.Info("database connection pool established")

	app, err := newApp(cfg, logger, data.NewModels(db), loc)
	if err != nil {
		return err
	}

	// Optional services, the API runs without them
	if cfg.SMTP.Enabled() {
		app.mailer = mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender)
	}

	if cfg.Sheets.Enabled() {
		client, err := sheets.NewClient(ctx, sheets.Config{
			ServiceAccountKeyPath: cfg.Sheets.CredentialsFile,
			SpreadsheetID:         cfg.Sheets.SpreadsheetID,
		})
		if err != nil {
			logger.Warn("google sheets export disabled", slog.String("error", err.Error()))
		} else {
			service := sheets.NewService(client, loc)
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := service.Ping(pingCtx); err != nil { // keep the exporter, requests report the real error
				logger.Warn("google sheets spreadsheet unreachable", slog.String("error", err.Error()))
			}
			cancel()
			app.exporter = service
		}
	}

	var watcher *config.Watcher
	if cfgPath != "" {
		watcher = config.NewWatcher(cfgPath, base, changed, logger, app.applyConfig)
	}

	return app.serve(ctx, watcher)
}

// newApp wires an app without external services.
func newApp(cfg config.Config, logger *slog.Logger, models data.Models, loc *time.Location) (*app, error) {
	templates, err := ui.NewTemplateCache(loc) // parse every page once
	if err != nil {
		return nil, err
	}

	if _, err := config.ParseProxies(cfg.Security.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	app := &app{
		config:    cfg,
		location:  loc,
		logger:    logger,
		models:    models,
		templates: templates,
	}
	dynamic := cfg.Dynamic()
	app.dynamic.Store(&dynamic) // initial value, replaced on reload

	return app, nil
}

// applyConfig swaps in the reloadable settings of a new configuration.
func (app *app) applyConfig(cfg config.Config) {
	dynamic := cfg.Dynamic()
	app.dynamic.Store(&dynamic)
	app.logger.Info("applied reloaded settings",
		slog.Any("trustedOrigins", dynamic.TrustedOrigins),
		slog.Int("blockedPatterns", len(dynamic.BlockedPatterns)),
		slog.Int("trustedProxies", len(dynamic.TrustedProxies)),
	)
}

// setupLogger writes text logs to stdout and, when configured, to a rotated file.
func setupLogger(cfg config.Config) (*slog.Logger, io.Closer, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stdout            // always log to stdout
	var closer io.Closer = io.NopCloser(nil) // nothing to close without a file

	if cfg.Log.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, file) // stdout and the rotated file
		closer = file
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if cfg.DB.DSN == "" {
		return nil, fmt.Errorf("db dsn is required")
	}

	db, err := sql.Open("postgres", cfg.DB.DSN) // create the pool, no connection yet
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)   // max open connections in the pool
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)   // max idle connections in the pool
	db.SetConnMaxIdleTime(cfg.DB.MaxIdleTime) // idle connections older than this are closed

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) // give the database 5 seconds to answer
	defer cancel()

	err = db.PingContext(ctx) // make sure the database is reachable
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
