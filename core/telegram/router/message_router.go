package router

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/musicbot/core/telegram"
)

// TextOptions controls routing of text and document updates.
type TextOptions struct {
	// Flow receives every text that is not a command alias.
	Flow tele.HandlerFunc
	// UnknownDocument answers documents. Nil only logs them.
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds the text and document routes. Aliases of public
// commands, such as reply keyboard buttons, win over Flow.
func TextRoutes(reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		if reg != nil {
			if key, cmd, ok := reg.LookupAlias(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return summarize(normalizeHandlerName(key), cmd.Handler)(c)
			}
		}
		if opts.Flow != nil {
			return summarize("flow", opts.Flow)(c)
		}
		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return summarize("fallback", fb)(c)
			}
		}
		skipped(c, "unknown_text")
		return nil
	}

	document := func(c tele.Context) error {
		if opts.UnknownDocument == nil {
			skipped(c, "unexpected_document")
			return nil
		}
		return summarize("unexpected_document", opts.UnknownDocument)(c)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}
