package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/logger"
	tghelpers "github.com/m3rciful/musicbot/core/telegram/helpers"
)

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return RecoverWith(nil)(next)
}

// RecoverWith is RecoverMiddleware with a hook that can still answer the user
// after a panic.
func RecoverWith(onPanic tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				ctx := tghelpers.BuildContext(c)
				logger.Error(ctx, "tg", "panic",
					slog.String("status", "fail"),
					slog.String("err", logger.SanitizeLimit(fmt.Sprint(r), 512)),
					slog.String("stack", string(debug.Stack())),
				)
				if onPanic != nil {
					_ = onPanic(c)
				}
				err = fmt.Errorf("handler panic: %v", r)
			}()
			return next(c)
		}
	}
}
