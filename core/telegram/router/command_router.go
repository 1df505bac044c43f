package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/musicbot/core/logger"
	tg "github.com/m3rciful/musicbot/core/telegram"
	"github.com/m3rciful/musicbot/core/telegram/middleware"
)

// CommandRouteOptions configures the admin gate for AdminOnly commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command to its slash endpoint.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, cmd := range cmds {
		h := cmd.Handler
		if cmd.AdminOnly {
			h = adminOnly(h)
		}
		routes = append(routes, tg.Route{
			Endpoint: endpoint,
			Handler:  wrap(summarize(normalizeHandlerName(endpoint), h)),
		})
	}

	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
