package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/logger"
	"github.com/m3rciful/musicbot/core/telegram/commands"
)

const wireComponent = "tg.wire"

// Registry collects commands, callback namespaces and fallbacks before the
// routes are built. Registration happens at startup; lookups are concurrent.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry with default fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func commandRejection(name string, cmd commands.Command) string {
	switch {
	case cmd.Handler == nil || cmd.Description == "" || name == "":
		return "invalid"
	case !strings.HasPrefix(name, "/"):
		return "no_slash_prefix"
	}
	return ""
}

// RegisterCommand adds cmd under its slash name. Invalid and duplicate
// registrations are logged and ignored; the first registration wins.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if r == nil {
		return
	}
	if cause := commandRejection(name, cmd); cause != "" {
		logger.Warn(context.Background(), wireComponent, "register.command",
			slog.String("status", "skip"),
			slog.String("name", name),
			slog.String("cause", cause),
		)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		logger.Warn(context.Background(), wireComponent, "register.command",
			slog.String("status", "duplicate"),
			slog.String("name", name),
		)
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns menu entries sorted by name, without the slash as
// setMyCommands expects. With visibleOnly set, hidden and admin-only
// commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]tele.Command, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && !cmd.Visible() {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves text to a command by its name or one of its
// aliases and returns the canonical name.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	name := "/" + strings.TrimPrefix(strings.TrimSpace(text), "/")
	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()
	if ok {
		return name, cmd, true
	}
	return r.LookupAlias(text)
}

// LookupAlias resolves text through command aliases only, so plain words
// typed by the user never trigger a command by its name.
func (r *Registry) LookupAlias(text string) (string, commands.Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, cmd := range r.commands {
		if cmd.Matches(text) {
			return name, cmd, true
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a copy of the registered commands keyed by slash name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterCallback binds handler to a callback namespace.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if r == nil || key == "" || handler == nil {
		logger.Warn(context.Background(), wireComponent, "register.callback",
			slog.String("status", "skip"),
			slog.String("key", key),
			slog.Bool("handler_nil", handler == nil),
		)
		return errors.New("invalid callback registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		logger.Warn(context.Background(), wireComponent, "register.callback",
			slog.String("status", "duplicate"),
			slog.String("key", key),
		)
		return fmt.Errorf("callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler of a namespace.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered namespaces, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the fallback for unknown namespaces.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the fallback for unknown namespaces.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text no route claims.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the handler for text no route claims.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible commands as the bot menu.
func InitBotCommands(ctx context.Context, bot *tele.Bot, reg *Registry) {
	cmds := reg.ListCommands(true)
	if err := bot.SetCommands(cmds); err != nil {
		logger.Error(ctx, wireComponent, "register.commands", slog.String("status", "fail"), logger.Err(err))
		return
	}
	logger.Info(ctx, wireComponent, "register.commands",
		slog.String("status", "ok"),
		slog.Int("count", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
}
