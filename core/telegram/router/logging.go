package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/logger"
	tghelpers "github.com/m3rciful/musicbot/core/telegram/helpers"
	"github.com/m3rciful/musicbot/core/telegram/middleware"
)

const statusSkip = "skip"

// wrap gives a route handler its own recover and receipt logging, so routes
// stay safe when installed without the global middleware chain.
func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

// summarize runs h under the handler name and writes one handler.handled line.
func summarize(name string, h tele.HandlerFunc, extras ...slog.Attr) tele.HandlerFunc {
	return func(c tele.Context) error {
		return summary{handler: name, extras: extras}.run(c, h)
	}
}

// summary is the handler.handled line of one update.
type summary struct {
	handler string
	start   time.Time
	// status overrides the ok/fail derived from err.
	status string
	err    error
	extras []slog.Attr
}

// run times h and writes the line once it returns.
func (s summary) run(c tele.Context, h tele.HandlerFunc) error {
	s.start = time.Now()
	tghelpers.WithHandler(c, s.handler)
	s.err = h(c)
	s.write(c)
	return s.err
}

func (s summary) write(c tele.Context) {
	ctx := tghelpers.WithHandler(c, s.handler)
	msgs, kb := middleware.GetCounters(c)

	outcome := "ok"
	if s.err != nil {
		outcome = "fail"
	}
	status := s.status
	if status == "" {
		status = outcome
	}

	took := time.Since(s.start)
	middleware.MetricsFrom(c).ObserveHandler(s.handler, status, took)

	attrs := append([]slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", took),
	}, s.extras...)
	if s.err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(s.err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(s.err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

// skipped logs an update nobody handled.
func skipped(c tele.Context, name string, extras ...slog.Attr) {
	summary{handler: name, start: time.Now(), status: statusSkip, extras: extras}.write(c)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// deriveErrorCode prefers an error's Code() and falls back to its type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
