package middleware

import (
	"log/slog"

	"github.com/mkorobov/tickertrack/core/logger"
	tghelpers "github.com/mkorobov/tickertrack/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// DialogState is the minimal view of the dialog engine the guard needs.
type DialogState interface {
	InProgress(userID int64) bool
}

// DialogMiddleware diverts updates from users with an active dialog to
// the divert handler. Telebot matches command endpoints before OnText,
// so without this guard a mid-dialog /cancel would run the cancel
// command instead of reaching the dialog engine. Idle users pass
// through to the wrapped handler untouched.
func DialogMiddleware(st DialogState, divert tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if st == nil || divert == nil {
			return next
		}
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil || !st.InProgress(sender.ID) {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "fsm.divert",
				slog.Int64("user_id", sender.ID),
				slog.String("rid", logger.RIDFrom(ctx)),
			)
			return divert(c)
		}
	}
}
