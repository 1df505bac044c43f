package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/musicbot/core/config"
	"github.com/m3rciful/musicbot/core/metrics"
	"github.com/m3rciful/musicbot/core/telegram/middleware"
)

// MiddlewareOptions tunes the shared middleware chain.
type MiddlewareOptions struct {
	// OnLimited answers users that hit the rate limit.
	OnLimited tele.HandlerFunc
	// OnPanic answers users whose update crashed a handler.
	OnPanic tele.HandlerFunc
	// Metrics receives update counters and handler timings. Nil disables them.
	Metrics *metrics.Metrics
}

// DefaultMiddlewares builds the shared middleware chain for bots.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverWith(opts.OnPanic)},
	}
	if opts.Metrics != nil {
		mws = append(mws, Middleware{Name: "instrument", Use: middleware.InstrumentMiddleware(opts.Metrics)})
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: opts.OnLimited,
				}),
			})
		}
	}

	mws = append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)

	return mws
}
