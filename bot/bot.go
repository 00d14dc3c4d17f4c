// Package bot wires the portfolio commands, dialogs and callbacks
// into the command registry.
package bot

import (
	"context"

	"github.com/mkorobov/tickertrack/bot/dialog"
	"github.com/mkorobov/tickertrack/bot/messages"
	tg "github.com/mkorobov/tickertrack/core/telegram"
	tghelpers "github.com/mkorobov/tickertrack/core/telegram/helpers"
	"github.com/mkorobov/tickertrack/core/telegram/state"
	"github.com/mkorobov/tickertrack/service"

	"github.com/mkorobov/tickertrack/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

var _ ui.FallbackProvider = (*Bot)(nil)

// Dialog states.
const (
	StateAddTicker    state.State = "add_ticker"
	StateAddAmount    state.State = "add_amount"
	StateUpdateTicker state.State = "update_ticker"
	StateUpdateAmount state.State = "update_amount"
	StateDeleteTicker state.State = "delete_ticker"
	StateDetailTicker state.State = "detail_ticker"
)

// tempTicker holds the ticker captured by the first dialog step.
const tempTicker = "ticker"

// Bot binds the services to Telegram handlers.
type Bot struct {
	users    *service.Users
	exchange *service.Exchange
	engine   *dialog.Engine
	reg      *tg.Registry

	// refreshNow runs a full market refresh and notification cycle
	// on behalf of the hidden admin command.
	refreshNow func(ctx context.Context) error
}

// Options carries the Bot dependencies.
type Options struct {
	Registry   *tg.Registry
	Sessions   state.Manager
	Users      *service.Users
	Exchange   *service.Exchange
	RefreshNow func(ctx context.Context) error
}

// New builds the bot and registers every command, dialog step and
// callback with the registry.
func New(opts Options) *Bot {
	b := &Bot{
		users:      opts.Users,
		exchange:   opts.Exchange,
		reg:        opts.Registry,
		refreshNow: opts.RefreshNow,
	}
	b.engine = dialog.New(opts.Sessions, b.dispatchCommand)
	b.registerCommands()
	b.registerDialogs()
	b.registerCallbacks()
	b.reg.SetTextFallback(b.UnknownText())
	return b
}

// Engine exposes the dialog engine for text routing.
func (b *Bot) Engine() *dialog.Engine {
	return b.engine
}

// dispatchCommand re-runs a registered command handler for escape
// commands sent mid-dialog.
func (b *Bot) dispatchCommand(c tele.Context, command string) error {
	if _, cmd, ok := b.reg.LookupCommand(command); ok && cmd.Handler != nil {
		return cmd.Handler(c)
	}
	return tghelpers.SendText(c, messages.UnknownCommand)
}

// UnknownText replies to slash-prefixed text that matched no command
// and ignores everything else.
func (b *Bot) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		if len(c.Text()) > 0 && c.Text()[0] == '/' {
			return tghelpers.SendText(c, messages.UnknownCommand)
		}
		return nil
	}
}

// UnknownDocument ignores stray documents.
func (b *Bot) UnknownDocument() tele.HandlerFunc {
	return func(tele.Context) error { return nil }
}

// UnknownCallback answers unexpected callback presses.
func (b *Bot) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: messages.UnknownCommand})
	}
}
