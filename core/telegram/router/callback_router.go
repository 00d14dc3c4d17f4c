package router

import (
	"log/slog"
	"time"

	tg "github.com/mkorobov/tickertrack/core/telegram"
	"github.com/mkorobov/tickertrack/core/telegram/callbacks"
	"github.com/mkorobov/tickertrack/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions supplies a last-resort handler for unknown callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute answers the callback immediately to stop the button
// spinner, then routes by the key parsed from the callback data.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key := callbacks.CallbackKey(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		_ = c.Respond()

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, name, start, "", "", func() error {
				if fallback != nil {
					return fallback(c)
				}
				return nil
			}, extras...)
		}

		return handleWithSummary(c, name, start, "", "", func() error {
			return h(c)
		}, extras...)
	}

	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
