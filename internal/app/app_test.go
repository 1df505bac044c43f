package app

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/musicbot/core/config"
	tg "github.com/m3rciful/musicbot/core/telegram"
	"github.com/m3rciful/musicbot/internal/config"
	"github.com/m3rciful/musicbot/internal/generation"
)

type nopGenerator struct{}

func (nopGenerator) Generate(context.Context, generation.Request) (string, error) { return "t", nil }
func (nopGenerator) Status(context.Context, string) (generation.Status, error) {
	return generation.Status{}, nil
}

func TestTelegramRunOptionsRoutes(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	cfg := &config.AppConfig{
		Config: coreconfig.Config{
			Telegram:  coreconfig.TelegramConfig{Token: "x", AdminID: 1},
			RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500},
		},
		Billing: config.BillingConfig{PriceStars: 6, Currency: "XTR", Title: "AI Music Generation"},
	}
	a := New(cfg, sqlx.NewDb(mockDB, "sqlmock"), nopGenerator{}, nil)

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		require.NotNil(t, r.Handler)
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{
		"/start", "/reset", "/status", "/order",
		tele.OnCallback, tele.OnText, tele.OnDocument, tele.OnCheckout, tele.OnPayment,
	} {
		assert.True(t, endpoints[want], "missing route %v", want)
	}

	var names []string
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"recover", "rate_limit", "logger", "metrics"}, names)

	require.NoError(t, opts.OnStop(context.Background(), tg.Runtime{}))
	require.NoError(t, mock.ExpectationsWereMet())
}
