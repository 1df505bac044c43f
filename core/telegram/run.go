package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/musicbot/core/config"
	"github.com/m3rciful/musicbot/core/logger"
	tghelpers "github.com/m3rciful/musicbot/core/telegram/helpers"
)

const component = "tg"

// Middleware is a named global middleware installed with bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint (command string, tele.OnText, ...).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips the deleteWebhook call made before long polling.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to lifecycle hooks once the bot exists.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

// RunTelegram builds the bot, installs middlewares and routes, and serves
// updates until ctx is cancelled. OnStop always runs after OnStart succeeded.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}

	bot, err := newBot(ctx, opts)
	if err != nil {
		return err
	}
	install(bot, opts)
	InitBotCommands(ctx, bot, opts.Registry)

	rt := Runtime{Bot: bot, Registry: opts.Registry}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, bot)

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func newBot(ctx context.Context, opts RunOptions) (*tele.Bot, error) {
	cfg := opts.Config
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(),
		OnError: logHandlerError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	took := time.Since(start)

	if wh, ok := poller.(*tele.Webhook); ok {
		logger.Info(ctx, component, "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", wh.Listen),
			slog.String("public_url", wh.Endpoint.PublicURL),
			slog.Duration("duration", took),
		)
		return bot, nil
	}

	logger.Info(ctx, component, "mode",
		slog.String("mode", "polling"),
		slog.Int("timeout_seconds", int(longPollTimeout(cfg.Telegram.LongPollTimeoutSeconds)/time.Second)),
		slog.Duration("duration", took),
	)
	if !opts.KeepWebhook {
		dropWebhook(ctx, bot)
	}
	return bot, nil
}

// dropWebhook clears a webhook left by a previous deployment; getUpdates
// fails while one is set.
func dropWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, component, "delete_webhook", slog.String("status", "fail"), logger.Err(err))
		return
	}
	logger.Info(ctx, component, "delete_webhook", slog.String("status", "ok"))
}

func install(bot *tele.Bot, opts RunOptions) {
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
}

// serve blocks until the poller exits or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	}
}

// logHandlerError replaces telebot's default stderr printer. Handlers have
// already answered the user by the time an error reaches it.
func logHandlerError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, component, "handler.error", slog.String("status", "fail"), logger.Err(err))
}
