package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/musicbot/core/telegram"
	"github.com/m3rciful/musicbot/core/telegram/callbacks"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound answers callbacks with an unregistered namespace. Nil uses
	// the registry's fallback.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches "namespace:value" callbacks to the handler
// registered for the namespace.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	notFound := opts.NotFound
	if notFound == nil && reg != nil {
		notFound = reg.CallbackNotFound()
	}

	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		// Stop the client spinner before doing any work.
		_ = c.Respond()

		key, value := callbacks.ParseCallbackData(cb)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key), slog.String("cb_value", value)}

		if reg != nil {
			if h, ok := reg.GetCallback(key); ok && h != nil {
				return summarize(name, h, extras...)(c)
			}
		}
		extras = append(extras, slog.String("cause", "not_found"))
		if notFound == nil {
			skipped(c, name, extras...)
			return nil
		}
		return summary{handler: name, status: statusSkip, extras: extras}.run(c, notFound)
	}

	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(handler)}
}
