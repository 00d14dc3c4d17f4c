// Package helpers bridges tele.Context and context.Context and offers
// send helpers that go through the async dispatcher.
package helpers

import (
	"context"

	"github.com/mkorobov/tickertrack/core/logger"

	tele "gopkg.in/telebot.v4"
)

const storedCtxKey = "logger_ctx"

// StoreContext caches a context.Context on the tele.Context so every
// helper in the request shares one set of log metadata.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(storedCtxKey, ctx)
	}
}

// ContextFrom returns the context cached by StoreContext, if any.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(storedCtxKey).(context.Context)
	return ctx, ok
}

// BuildContext returns the cached request context, or builds one from the
// update's rid and metadata and caches it.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	upd := c.Update()

	rid, _ := c.Get("rid").(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler stamps the handler name onto the request context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
