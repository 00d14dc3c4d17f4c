package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/mkorobov/tickertrack/bot/dialog"
	"github.com/mkorobov/tickertrack/bot/messages"
	tghelpers "github.com/mkorobov/tickertrack/core/telegram/helpers"
	"github.com/mkorobov/tickertrack/core/telegram/state"
	"github.com/shopspring/decimal"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) registerDialogs() {
	b.engine.Register(StateAddTicker, dialog.Step{
		Handle:    b.addTickerStep,
		ErrorText: messages.TickerInvalid,
		Escapes:   []string{"/ticker_list"},
	})
	b.engine.Register(StateAddAmount, dialog.Step{
		Handle:    b.addAmountStep,
		ErrorText: messages.AmountInvalid,
	})
	b.engine.Register(StateUpdateTicker, dialog.Step{
		Handle:    b.updateTickerStep,
		ErrorText: messages.TickerInvalid,
		Escapes:   []string{"/my_tickers"},
	})
	b.engine.Register(StateUpdateAmount, dialog.Step{
		Handle:    b.updateAmountStep,
		ErrorText: messages.AmountInvalid,
		Escapes:   []string{"/my_tickers"},
	})
	b.engine.Register(StateDeleteTicker, dialog.Step{
		Handle:    b.deleteTickerStep,
		ErrorText: messages.TickerInvalid,
		Escapes:   []string{"/my_tickers"},
	})
	b.engine.Register(StateDetailTicker, dialog.Step{
		Handle:    b.detailTickerStep,
		ErrorText: messages.TickerInvalid,
		Escapes:   []string{"/ticker_list"},
	})
}

// Dialog entry commands.

func (b *Bot) handleAdd(c tele.Context) error {
	if err := b.users.Ensure(tghelpers.BuildContext(c), c.Sender().ID); err != nil {
		return err
	}
	return b.engine.Start(c, StateAddTicker, messages.AddPromptTicker)
}

func (b *Bot) handleUpdate(c tele.Context) error {
	if err := b.users.Ensure(tghelpers.BuildContext(c), c.Sender().ID); err != nil {
		return err
	}
	return b.engine.Start(c, StateUpdateTicker, messages.UpdatePromptTicker)
}

func (b *Bot) handleDelete(c tele.Context) error {
	if err := b.users.Ensure(tghelpers.BuildContext(c), c.Sender().ID); err != nil {
		return err
	}
	return b.engine.Start(c, StateDeleteTicker, messages.DeletePromptTicker)
}

func (b *Bot) handleDetail(c tele.Context) error {
	if err := b.users.Ensure(tghelpers.BuildContext(c), c.Sender().ID); err != nil {
		return err
	}
	return b.engine.Start(c, StateDetailTicker, messages.DetailPromptTicker)
}

// Dialog steps.

func (b *Bot) addTickerStep(c tele.Context, text string) (dialog.Result, error) {
	if !isAlpha(text) {
		return dialog.Result{Invalid: true}, nil
	}
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	ticker := strings.ToUpper(text)

	mine, err := b.users.Tickers(ctx, userID)
	if err != nil {
		return dialog.Result{}, err
	}
	if contains(mine, ticker) {
		return stay(c, StateAddTicker, messages.TickerAlready)
	}

	known, err := b.exchange.Tickers(ctx)
	if err != nil {
		return dialog.Result{}, err
	}
	if !contains(known, ticker) {
		return stay(c, StateAddTicker, messages.TickerUnknown)
	}

	b.engine.Sessions().SetTemp(userID, tempTicker, ticker)
	if err := tghelpers.SendText(c, messages.AddPromptAmount); err != nil {
		return dialog.Result{}, err
	}
	return dialog.Result{Next: StateAddAmount}, nil
}

func (b *Bot) addAmountStep(c tele.Context, text string) (dialog.Result, error) {
	amount, ok := parseAmount(text)
	if !ok {
		return dialog.Result{Invalid: true}, nil
	}
	if amount <= 0 {
		return stay(c, StateAddAmount, messages.AmountNotPositive)
	}

	userID := c.Sender().ID
	ticker, ok := b.engine.Sessions().GetTempString(userID, tempTicker)
	if !ok {
		return dialog.Result{}, tghelpers.SendText(c, messages.DialogExpired)
	}
	ctx := tghelpers.BuildContext(c)
	if err := b.users.SetHolding(ctx, userID, ticker, amount); err != nil {
		return dialog.Result{}, err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf(messages.AddedFmt, ticker, amount)); err != nil {
		return dialog.Result{}, err
	}
	return dialog.Result{}, nil
}

func (b *Bot) updateTickerStep(c tele.Context, text string) (dialog.Result, error) {
	if !isAlpha(text) {
		return dialog.Result{Invalid: true}, nil
	}
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	ticker := strings.ToUpper(text)

	mine, err := b.users.Tickers(ctx, userID)
	if err != nil {
		return dialog.Result{}, err
	}
	if !contains(mine, ticker) {
		return stay(c, StateUpdateTicker, messages.TickerNotYours)
	}

	b.engine.Sessions().SetTemp(userID, tempTicker, ticker)
	if err := tghelpers.SendText(c, messages.UpdatePromptAmount); err != nil {
		return dialog.Result{}, err
	}
	return dialog.Result{Next: StateUpdateAmount}, nil
}

// updateAmountStep accepts zero: a position can be parked at zero
// lots without dropping the ticker from the portfolio.
func (b *Bot) updateAmountStep(c tele.Context, text string) (dialog.Result, error) {
	amount, ok := parseAmount(text)
	if !ok {
		return dialog.Result{Invalid: true}, nil
	}

	userID := c.Sender().ID
	ticker, ok := b.engine.Sessions().GetTempString(userID, tempTicker)
	if !ok {
		return dialog.Result{}, tghelpers.SendText(c, messages.DialogExpired)
	}
	ctx := tghelpers.BuildContext(c)
	if err := b.users.SetHolding(ctx, userID, ticker, amount); err != nil {
		return dialog.Result{}, err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf(messages.UpdatedFmt, ticker)); err != nil {
		return dialog.Result{}, err
	}
	return dialog.Result{}, nil
}

func (b *Bot) deleteTickerStep(c tele.Context, text string) (dialog.Result, error) {
	if !isAlpha(text) {
		return dialog.Result{Invalid: true}, nil
	}
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	ticker := strings.ToUpper(text)

	mine, err := b.users.Tickers(ctx, userID)
	if err != nil {
		return dialog.Result{}, err
	}
	if !contains(mine, ticker) {
		return stay(c, StateDeleteTicker, messages.TickerNotYours)
	}

	if err := b.users.RemoveHolding(ctx, userID, ticker); err != nil {
		return dialog.Result{}, err
	}
	if err := tghelpers.SendText(c, fmt.Sprintf(messages.DeletedFmt, ticker)); err != nil {
		return dialog.Result{}, err
	}
	return dialog.Result{}, nil
}

func (b *Bot) detailTickerStep(c tele.Context, text string) (dialog.Result, error) {
	if !isAlpha(text) {
		return dialog.Result{Invalid: true}, nil
	}
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	ticker := strings.ToUpper(text)

	known, err := b.exchange.Tickers(ctx)
	if err != nil {
		return dialog.Result{}, err
	}
	if !contains(known, ticker) {
		return stay(c, StateDetailTicker, messages.TickerUnknown)
	}

	share, err := b.exchange.Detail(ctx, ticker)
	if err != nil {
		return dialog.Result{}, err
	}
	response := fmt.Sprintf(messages.DetailFmt,
		share.Ticker, share.Name, share.Price.String(), share.LotSize, share.LotPrice.String())

	holdings, err := b.users.Holdings(ctx, userID)
	if err != nil {
		return dialog.Result{}, err
	}
	if holding, owned := holdings[ticker]; owned {
		owns := share.LotPrice.Mul(decimal.NewFromInt(holding.Amount))
		response += fmt.Sprintf(messages.DetailOwnedFmt, holding.Amount, owns.String())
	}

	if err := tghelpers.SendText(c, response); err != nil {
		return dialog.Result{}, err
	}
	return dialog.Result{}, nil
}

// stay sends a step-specific reply and keeps the user on the same step.
func stay(c tele.Context, st state.State, text string) (dialog.Result, error) {
	if err := tghelpers.SendText(c, text); err != nil {
		return dialog.Result{}, err
	}
	return dialog.Result{Next: st}, nil
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// parseAmount accepts unsigned base-10 integers only.
func parseAmount(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
