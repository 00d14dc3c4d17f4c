// Package middleware holds the global update-processing chain shared by
// all routes: recover, rate limit, request logging, send metrics.
package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mkorobov/tickertrack/core/logger"
	"github.com/mkorobov/tickertrack/core/telegram/callbacks"
	tghelpers "github.com/mkorobov/tickertrack/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// The receipt log is deduplicated by update id because the middleware is
// applied on several route branches.
const dedupeKeepFor = 10 * time.Second

var (
	dedupeMu   sync.Mutex
	dedupeSeen = make(map[int]time.Time)
)

func alreadyLogged(updateID int) bool {
	now := time.Now()
	dedupeMu.Lock()
	defer dedupeMu.Unlock()
	for id, ts := range dedupeSeen {
		if now.Sub(ts) > dedupeKeepFor {
			delete(dedupeSeen, id)
		}
	}
	if _, ok := dedupeSeen[updateID]; ok {
		return true
	}
	dedupeSeen[updateID] = now
	return false
}

// LoggerMiddleware builds the correlation id, stores the request context
// for downstream handlers and emits one sampled receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()

		var chatID, userID int64
		chat := c.Chat()
		if chat != nil {
			chatID = chat.ID
		}
		user := c.Sender()
		if user != nil {
			userID = user.ID
		}

		rid := logger.BuildRID(upd.ID, chatID, userID)
		c.Set("rid", rid)
		c.Set("update_start", time.Now())

		ctx := logger.WithRID(context.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.Component("tg"))
		tghelpers.StoreContext(c, ctx)

		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("rid", rid),
				slog.Int("update_id", upd.ID),
			}
			if chat != nil {
				attrs = append(attrs,
					slog.Int64("chat_id", chatID),
					slog.String("chat_type", string(chat.Type)),
				)
			}
			if user != nil {
				attrs = append(attrs, slog.Int64("user_id", userID))
				if user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
				if user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
			}
			attrs = append(attrs, payloadAttrs(c, upd)...)
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}

func payloadAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	var attrs []slog.Attr
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if upd.Callback.Unique != "" {
			key, payload = upd.Callback.Unique, upd.Callback.Data
		}
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}
