package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/mkorobov/tickertrack/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into a logged event so one bad
// update cannot take the poller down.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		defer func() {
			if r := recover(); r != nil {
				logger.LogEvent(context.Background(), logger.TG, slog.LevelError, "tg.panic",
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		return next(c)
	}
}
