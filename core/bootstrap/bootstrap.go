package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/musicbot/core/config"
	coredatabase "github.com/m3rciful/musicbot/core/database"
	"github.com/m3rciful/musicbot/core/logger"
	"github.com/m3rciful/musicbot/core/metrics"
)

// Options control the generic bootstrap pipeline shared between bots.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// Migrations holds the SQL files applied on start, under MigrationsDir.
	Migrations    fs.FS
	MigrationsDir string

	// Metrics, when set, exports the connection pool statistics.
	Metrics *metrics.Metrics

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, connects to the database, and applies migrations.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	ctx := context.Background()
	start := time.Now()

	migrate := opts.Migrate
	if migrate == nil {
		if opts.Migrations == nil {
			return nil, fmt.Errorf("bootstrap: no migrations provided")
		}
		dir := opts.MigrationsDir
		if dir == "" {
			dir = "."
		}
		migrate = func(cfg coredatabase.Config) error {
			return coredatabase.RunMigrations(cfg, opts.Migrations, dir)
		}
	}
	if err := migrate(opts.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	opts.Metrics.WatchDB(db.DB, opts.Database.Name)

	logger.Info(ctx, "app", "bootstrap",
		slog.String("status", "ok"),
		slog.Duration("duration", time.Since(start)),
	)
	return &Result{DB: db}, nil
}
