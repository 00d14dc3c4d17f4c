// Package router turns registry entries into telebot routes with the
// shared middleware chain applied.
package router

import (
	"context"
	"log/slog"

	"github.com/mkorobov/tickertrack/core/logger"
	tg "github.com/mkorobov/tickertrack/core/telegram"
	"github.com/mkorobov/tickertrack/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the guards put around command handlers.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
	// Dialog, when set, diverts commands from mid-dialog users to the
	// dialog engine so cancel and escape commands work from any step.
	Dialog FSM
}

// CommandRoutes wraps every registered command with recover and summary
// logging, plus the admin guard for AdminOnly commands.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminGuard := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	dialogGuard := func(h tele.HandlerFunc) tele.HandlerFunc { return h }
	if opts.Dialog != nil {
		divert := middleware.LoggerMiddleware(middleware.RecoverMiddleware(opts.Dialog.ManagerHandler))
		dialogGuard = middleware.DialogMiddleware(opts.Dialog, divert)
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for name, def := range reg.Commands() {
		h := middleware.RecoverMiddleware(def.Handler)
		h = middleware.LoggerMiddleware(h)
		if def.AdminOnly {
			h = adminGuard(h)
		}
		h = dialogGuard(h)
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.LogEvent(context.Background(), logger.TWire, slog.LevelInfo, "complete",
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
