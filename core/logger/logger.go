// Package logger is the bot's structured logging layer on top of log/slog.
// Every record carries a component and an event; request-scoped fields such
// as rid, user_id and order_id travel in the context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/musicbot/core/buildinfo"
	coreconfig "github.com/m3rciful/musicbot/core/config"
)

// L is the base logger. It stays nil until InitLogger runs, which turns every
// helper in this package into a no-op (handy in unit tests).
var L *slog.Logger

var (
	initOnce sync.Once
	level    slog.LevelVar

	sinksMu sync.Mutex
	sinks   *outputSet
)

// outputSet owns the writer goroutine and the files it writes to.
type outputSet struct {
	writer *asyncWriter
	files  []io.Closer
	closed bool
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// InitLogger configures the global structured logger. Calls after the
// first one are no-ops.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		lc := coreconfig.LoggingConfig{}
		if cfg != nil {
			lc = cfg.Logging
		}
		level.Set(parseLevel(lc.Level))
		initDebugSampling(lc.DebugSample)

		out := &outputSet{}
		writers := []io.Writer{os.Stdout}
		if f, ferr := openLogFile(lc); ferr != nil {
			// The bot still runs with stdout only.
			log.Printf("logger: %v", ferr)
		} else if f != nil {
			writers = append(writers, f)
			out.files = append(out.files, f)
		}
		out.writer = newAsyncWriter(writers, 64*1024)

		sinksMu.Lock()
		sinks = out
		sinksMu.Unlock()

		L = slog.New(newStructuredHandler(handlerConfig{
			level:  &level,
			writer: out.writer,
			format: parseFormat(lc),
		}))
		slog.SetDefault(L)

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("cfg_profile", profile(lc)),
		)
	})
	return nil
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	if sinks == nil || sinks.closed {
		return nil
	}
	sinks.closed = true

	var errs []error
	if err := sinks.writer.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := sinks.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, f := range sinks.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func parseLevel(s string) slog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// parseFormat honours an explicit format and otherwise picks key=value
// lines for the debug and dev profiles.
func parseFormat(lc coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if p := profile(lc); p == "debug" || p == "dev" {
		return formatKV
	}
	return formatJSON
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.TrimSpace(lc.Profile); p != "" {
		return strings.ToLower(p)
	}
	return "prod"
}

// openLogFile opens the optional file sink. It returns nil, nil when no
// file is configured.
func openLogFile(lc coreconfig.LoggingConfig) (*os.File, error) {
	dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile)
	if dir == "" || name == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

// LogEvent writes a record whose message is carried in the "event"
// attribute. A nil logg falls back to the one stored in ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, lvl slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, lvl, "", attrs...)
}

// Component returns L scoped to a component, or nil before InitLogger.
func Component(name string) *slog.Logger {
	if L == nil {
		return nil
	}
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs event at lvl for component.
func Event(ctx context.Context, component string, lvl slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), lvl, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// Err is the "err" attribute, truncated to keep lines bounded.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "")
	}
	return slog.String("err", SanitizeLimit(err.Error(), 512))
}
