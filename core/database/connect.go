package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/musicbot/core/logger"
)

const (
	component = "db"
	driver    = "postgres"

	connectTimeout = 5 * time.Second
	waitInterval   = 2 * time.Second
)

// Connect opens the pool described by cfg and pings it once.
func Connect(cfg Config) (*sqlx.DB, error) {
	cfg = cfg.WithDefaults()
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	target := []slog.Attr{
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driver, cfg.KeywordDSN())
	took := time.Since(start)
	if err != nil {
		logger.Error(ctx, component, "db.connect",
			append(target, slog.String("status", "fail"), slog.Duration("duration", took), logger.Err(err))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger.Info(ctx, component, "db.connect",
		append(target,
			slog.String("status", "ok"),
			slog.Int("pool_open", cfg.MaxConnections),
			slog.Duration("duration", took),
		)...)
	return db, nil
}

// WaitForPostgres pings dsn every few seconds until the server answers or
// timeout elapses. Compose starts the bot alongside the database.
func WaitForPostgres(dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(waitInterval)
	defer ticker.Stop()
	for {
		err := ping(ctx, dsn)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-ticker.C:
		}
	}
}

func ping(ctx context.Context, dsn string) error {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
