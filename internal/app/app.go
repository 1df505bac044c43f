// Package app wires configuration, storage, services and Telegram handlers
// into a runnable bot.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/musicbot/core/bootstrap"
	corecmd "github.com/m3rciful/musicbot/core/cmd"
	"github.com/m3rciful/musicbot/core/logger"
	"github.com/m3rciful/musicbot/core/metrics"
	tg "github.com/m3rciful/musicbot/core/telegram"
	"github.com/m3rciful/musicbot/core/telegram/router"
	"github.com/m3rciful/musicbot/internal/bot"
	"github.com/m3rciful/musicbot/internal/config"
	"github.com/m3rciful/musicbot/internal/generation"
	"github.com/m3rciful/musicbot/internal/service"
	"github.com/m3rciful/musicbot/internal/storage"
	"github.com/m3rciful/musicbot/internal/storage/migrations"
)

// App is the assembled bot.
type App struct {
	cfg      *config.AppConfig
	db       *sqlx.DB
	metrics  *metrics.Metrics
	refunder *bot.StarsRefunder
	handlers *bot.Handlers
}

// LoadConfig adapts config.Load to the runner.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap connects storage and builds the services for cfg.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.AppConfig)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}

	m := metrics.New()
	res, err := bootstrap.Run(bootstrap.Options{
		Config:        cfg.CoreConfig(),
		Database:      cfg.Database,
		Migrations:    migrations.FS,
		MigrationsDir: migrations.Dir,
		Metrics:       m,
	})
	if err != nil {
		return nil, err
	}

	gen, err := generation.NewClient(generation.Config{
		BaseURL:       cfg.Generation.BaseURL,
		ServiceToken:  cfg.Generation.ServiceToken,
		Timeout:       cfg.Generation.Timeout(),
		StatusRetries: cfg.Generation.StatusRetries,
	}, nil)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}

	return New(cfg, res.DB, gen, m), nil
}

// New assembles the services on top of an open database.
func New(cfg *config.AppConfig, db *sqlx.DB, gen service.Generator, m *metrics.Metrics) *App {
	store := storage.New(db)
	refunder := &bot.StarsRefunder{}

	flow := service.NewFlow(store, service.Billing{
		PriceStars: cfg.Billing.PriceStars,
		Currency:   cfg.Billing.Currency,
		Model:      cfg.Generation.Model,
	}, m)
	orders := service.NewOrders(store, gen, refunder, m, service.OrdersConfig{
		GenerateTimeout: cfg.Generation.Timeout(),
	})

	return &App{
		cfg:      cfg,
		db:       db,
		metrics:  m,
		refunder: refunder,
		handlers: bot.New(flow, orders, bot.InvoiceConfig{
			Title:      cfg.Billing.Title,
			PriceStars: cfg.Billing.PriceStars,
			Currency:   cfg.Billing.Currency,
		}),
	}
}

// TelegramRunOptions builds the routes, middleware and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	reg := tg.NewRegistry()
	if err := a.handlers.Register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: a.handlers.RejectAdmin,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{
		Flow:            a.handlers.Text,
		UnknownDocument: a.handlers.Unexpected,
	})...)
	routes = append(routes, router.PaymentRoutes(router.PaymentOptions{
		Checkout: a.handlers.Checkout,
		Success:  a.handlers.Payment,
	})...)

	stopMetrics := func() {}
	return tg.RunOptions{
		Config:   core,
		Registry: reg,
		Middlewares: tg.DefaultMiddlewares(core, tg.MiddlewareOptions{
			OnLimited: a.handlers.RateLimited,
			OnPanic:   a.handlers.Panicked,
			Metrics:   a.metrics,
		}),
		Routes: routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.refunder.Bind(rt.Bot)
			mctx, cancel := context.WithCancel(ctx)
			stopMetrics = cancel
			go func() {
				if err := metrics.Serve(mctx, core.Metrics, a.metrics); err != nil {
					logger.Error(mctx, "app", "metrics", slog.String("status", "fail"), logger.Err(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context, rt tg.Runtime) error {
			stopMetrics()
			if err := a.db.Close(); err != nil {
				return fmt.Errorf("app: close db: %w", err)
			}
			logger.Info(ctx, "app", "db.close", slog.String("status", "ok"))
			return nil
		},
	}, nil
}
