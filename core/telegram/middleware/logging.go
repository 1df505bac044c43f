package middleware

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/logger"
	"github.com/m3rciful/musicbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/musicbot/core/telegram/helpers"
)

const ridKey = "rid"

// LoggerMiddleware stores the update's rid and logging context, then writes
// one update.received line when the debug sampler lets it through. The stored rid marks the update as seen, so
// nested copies of the middleware stay silent.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if rid, _ := c.Get(ridKey).(string); rid != "" {
			return next(c)
		}

		var chatID, userID int64
		if chat := c.Chat(); chat != nil {
			chatID = chat.ID
		}
		if user := c.Sender(); user != nil {
			userID = user.ID
		}
		c.Set(ridKey, logger.BuildRID(c.Update().ID, chatID, userID))
		c.Set("update_start", time.Now())

		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

// receiptAttrs describes who sent the update and what it carries.
func receiptAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}

	switch {
	case upd.Callback != nil:
		key, value := callbacks.ParseCallbackData(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(value, 256)),
		)
	case upd.Message != nil && upd.Message.Payment != nil:
		attrs = append(attrs,
			slog.String("payload", logger.SanitizeLimit(upd.Message.Payment.Payload, 128)),
			slog.Int("amount", upd.Message.Payment.Total),
		)
	case upd.Message != nil:
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}
