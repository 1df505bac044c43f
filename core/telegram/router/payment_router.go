package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/musicbot/core/telegram"
)

// PaymentOptions wires the two payment updates.
type PaymentOptions struct {
	// Checkout answers pre-checkout queries. Nil accepts every query.
	Checkout tele.HandlerFunc
	// Success handles successful payment service messages.
	Success tele.HandlerFunc
}

// PaymentRoutes builds the pre-checkout and successful payment routes.
func PaymentRoutes(opts PaymentOptions) []tg.Route {
	checkout := opts.Checkout
	if checkout == nil {
		checkout = func(c tele.Context) error { return c.Accept() }
	}

	routes := []tg.Route{{
		Endpoint: tele.OnCheckout,
		Handler: wrap(func(c tele.Context) error {
			var extras []slog.Attr
			if q := c.PreCheckoutQuery(); q != nil {
				extras = append(extras, slog.Int("amount", q.Total), slog.String("currency", q.Currency))
			}
			return summarize("payment.checkout", checkout, extras...)(c)
		}),
	}}
	if opts.Success != nil {
		routes = append(routes, tg.Route{
			Endpoint: tele.OnPayment,
			Handler:  wrap(summarize("payment.success", opts.Success)),
		})
	}
	return routes
}
