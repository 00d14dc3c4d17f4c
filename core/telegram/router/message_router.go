package router

import (
	"time"

	tg "github.com/mkorobov/tickertrack/core/telegram"
	"github.com/mkorobov/tickertrack/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is what the text router needs from a dialog engine: whether the
// sender is mid-dialog, and the handler that advances the dialog.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions supplies fallbacks for text and document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes routes plain text updates: an active dialog wins, then
// command lookup, then the registry fallback. Documents go to the dialog
// when one is active and to the document fallback otherwise.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	onText := func(c tele.Context) error {
		start := time.Now()

		if fsm != nil && fsm.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "fsm", start, "", "", func() error {
				return fsm.ManagerHandler(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handleWithSummary(c, normalizeHandlerName(key), start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	onDocument := func(c tele.Context) error {
		start := time.Now()
		if fsm != nil && fsm.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "fsm_document", start, "", "", func() error {
				return fsm.ManagerHandler(c)
			})
		}
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", "", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(onText))},
		{Endpoint: tele.OnDocument, Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(onDocument))},
	}
}
