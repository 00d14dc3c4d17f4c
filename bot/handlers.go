package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mkorobov/tickertrack/bot/messages"
	"github.com/mkorobov/tickertrack/core/telegram/callbacks"
	"github.com/mkorobov/tickertrack/core/telegram/commands"
	tghelpers "github.com/mkorobov/tickertrack/core/telegram/helpers"
	"github.com/mkorobov/tickertrack/core/telegram/keyboard"
	"github.com/mkorobov/tickertrack/repo"
	"github.com/shopspring/decimal"

	tele "gopkg.in/telebot.v4"
)

// Callback keys for ticker list pagination.
const (
	cbPrevPage = "ticker_list_prev_page"
	cbNextPage = "ticker_list_next_page"
)

func (b *Bot) registerCommands() {
	b.reg.RegisterCommand("/start", commands.Command{
		Handler:     b.handleStart,
		Description: "start the bot",
		Hidden:      true,
	})
	b.reg.RegisterCommand("/help", commands.Command{
		Handler:     b.handleHelp,
		Description: messages.HelpDescription,
	})
	b.reg.RegisterCommand("/add", commands.Command{
		Handler:     b.handleAdd,
		Description: messages.AddDescription,
	})
	b.reg.RegisterCommand("/ticker_list", commands.Command{
		Handler:     b.handleTickerList,
		Description: messages.TickerListDescription,
	})
	b.reg.RegisterCommand("/detail", commands.Command{
		Handler:     b.handleDetail,
		Description: messages.DetailDescription,
	})
	b.reg.RegisterCommand("/delete", commands.Command{
		Handler:     b.handleDelete,
		Description: messages.DeleteDescription,
	})
	b.reg.RegisterCommand("/update", commands.Command{
		Handler:     b.handleUpdate,
		Description: messages.UpdateDescription,
	})
	b.reg.RegisterCommand("/my_tickers", commands.Command{
		Handler:     b.handleMyTickers,
		Description: messages.MyTickersDescription,
	})
	b.reg.RegisterCommand("/my_investment_portfolio", commands.Command{
		Handler:     b.handlePortfolio,
		Description: messages.PortfolioDescription,
	})
	b.reg.RegisterCommand("/cancel", commands.Command{
		Handler:     b.handleCancel,
		Description: messages.CancelDescription,
	})
	b.reg.RegisterCommand("/refresh_now", commands.Command{
		Handler:     b.handleRefreshNow,
		Description: "refresh market data immediately",
		AdminOnly:   true,
		Hidden:      true,
	})
}

func (b *Bot) registerCallbacks() {
	_ = b.reg.RegisterCallback(cbPrevPage, b.handleTickerListPage)
	_ = b.reg.RegisterCallback(cbNextPage, b.handleTickerListPage)
	b.reg.SetCallbackNotFound(b.UnknownCallback())
}

func (b *Bot) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := b.users.Ensure(ctx, c.Sender().ID); err != nil {
		return err
	}
	return tghelpers.SendText(c, messages.Start)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return tghelpers.SendText(c, messages.Help)
}

// handleCancel answers /cancel sent outside a dialog. In-dialog
// cancellation is swallowed by the engine before command routing.
func (b *Bot) handleCancel(c tele.Context) error {
	return tghelpers.SendText(c, messages.Cancelled)
}

func (b *Bot) handleRefreshNow(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if b.refreshNow != nil {
		if err := b.refreshNow(ctx); err != nil {
			return err
		}
	}
	return tghelpers.SendText(c, messages.RefreshDone)
}

func (b *Bot) handleMyTickers(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if err := b.users.Ensure(ctx, userID); err != nil {
		return err
	}
	positions, err := b.users.Positions(ctx, userID, false)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return tghelpers.SendText(c, messages.PortfolioEmpty)
	}
	lines := make([]string, 0, len(positions))
	for _, pos := range positions {
		lines = append(lines, fmt.Sprintf(messages.TickerLineFmt,
			pos.Ticker, pos.Amount, pos.Capitalization.String()))
	}
	return tghelpers.SendText(c, fmt.Sprintf(messages.MyTickersFmt, strings.Join(lines, "\n")))
}

func (b *Bot) handlePortfolio(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if err := b.users.Ensure(ctx, userID); err != nil {
		return err
	}
	positions, err := b.users.Positions(ctx, userID, false)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(pos.Capitalization)
	}
	return tghelpers.SendText(c, fmt.Sprintf(messages.PortfolioFmt, total.String()))
}

// handleTickerList shows one page of the ticker universe. An optional
// numeric argument selects the page, anything else means page one.
func (b *Bot) handleTickerList(c tele.Context) error {
	page := 1
	if msg := c.Message(); msg != nil {
		if fields := strings.Fields(msg.Payload); len(fields) > 0 {
			if n, err := strconv.Atoi(fields[0]); err == nil {
				page = n
			}
		}
	}
	return b.sendTickerList(c, page)
}

func (b *Bot) handleTickerListPage(c tele.Context) error {
	page, err := callbacks.PayloadInt(c)
	if err != nil {
		return b.UnknownCallback()(c)
	}
	return b.sendTickerList(c, page)
}

func (b *Bot) sendTickerList(c tele.Context, page int) error {
	ctx := tghelpers.BuildContext(c)
	p, err := b.exchange.PageOfTickers(ctx, page)
	if err != nil {
		var rangeErr *repo.PageOutOfRangeError
		if errors.As(err, &rangeErr) {
			return tghelpers.SendText(c, rangeErr.Error())
		}
		return err
	}

	var markup *tele.ReplyMarkup
	var buttons []keyboard.InlineBtn
	if p.PrevPage > 0 {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   messages.PrevPageButton,
			Unique: cbPrevPage,
			Data:   strconv.Itoa(p.PrevPage),
		})
	}
	if p.NextPage > 0 {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   messages.NextPageButton,
			Unique: cbNextPage,
			Data:   strconv.Itoa(p.NextPage),
		})
	}
	if len(buttons) > 0 {
		markup = keyboard.InlineButtons(buttons)
	}

	text := fmt.Sprintf(messages.TickerListFmt,
		strings.Join(p.Tickers, "\n"), page, p.TotalPages)
	if markup != nil {
		return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return tghelpers.SendText(c, text)
}
