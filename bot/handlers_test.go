package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkorobov/tickertrack/bot/messages"
	tg "github.com/mkorobov/tickertrack/core/telegram"
	"github.com/mkorobov/tickertrack/core/telegram/state"
	"github.com/mkorobov/tickertrack/domain"
	"github.com/mkorobov/tickertrack/repo"
	"github.com/mkorobov/tickertrack/service"
	"github.com/mkorobov/tickertrack/storage"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context
	sender   *tele.User
	text     string
	payload  string
	callback *tele.Callback
	data     map[string]any
	sent     []string
	lastOpts *tele.SendOptions
}

func newFakeContext(userID int64, text string) *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: userID},
		text:   text,
		data:   make(map[string]any),
	}
}

func (c *fakeContext) Sender() *tele.User  { return c.sender }
func (c *fakeContext) Chat() *tele.Chat    { return &tele.Chat{ID: c.sender.ID} }
func (c *fakeContext) Update() tele.Update { return tele.Update{} }
func (c *fakeContext) Text() string        { return c.text }

func (c *fakeContext) Message() *tele.Message {
	return &tele.Message{Text: c.text, Payload: c.payload}
}

func (c *fakeContext) Callback() *tele.Callback { return c.callback }

func (c *fakeContext) Respond(_ ...*tele.CallbackResponse) error { return nil }

func (c *fakeContext) Get(key string) any      { return c.data[key] }
func (c *fakeContext) Set(key string, val any) { c.data[key] = val }

func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, s)
	}
	c.lastOpts = nil
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			c.lastOpts = so
		}
	}
	return nil
}

func (c *fakeContext) lastSent(t *testing.T) string {
	t.Helper()
	if len(c.sent) == 0 {
		t.Fatal("nothing was sent")
	}
	return c.sent[len(c.sent)-1]
}

func universe(n int) []domain.Share {
	shares := make([]domain.Share, 0, n)
	for i := 0; i < n; i++ {
		ticker := fmt.Sprintf("TK%c%c", 'A'+i/26, 'A'+i%26)
		shares = append(shares, domain.Share{
			Ticker:         ticker,
			Name:           "Company " + ticker,
			Price:          decimal.NewFromInt(int64(100 + i)),
			LotSize:        10,
			LotPrice:       decimal.NewFromInt(int64((100 + i) * 10)),
			LotPriceChange: decimal.NewFromInt(5),
		})
	}
	return shares
}

type staticSource struct {
	shares []domain.Share
}

func (s *staticSource) FetchShares(context.Context) ([]domain.Share, error) {
	return s.shares, nil
}

func newTestBot(t *testing.T, shares []domain.Share) *Bot {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemory()
	for _, table := range []string{domain.TableShares, domain.TableUsers} {
		if err := store.EnsureTable(ctx, table); err != nil {
			t.Fatalf("EnsureTable: %v", err)
		}
	}

	shareRepo := repo.New(store, domain.TableShares, domain.FieldTicker, repo.StringKey, nil)
	userRepo := repo.New(store, domain.TableUsers, domain.FieldUserID, repo.Int64Key,
		map[string]repo.Initializer{
			domain.FieldTickers: func() any { return map[string]any{} },
		})
	exchange := service.NewExchange(shareRepo, &staticSource{shares: shares})
	if len(shares) > 0 {
		if err := exchange.Refresh(ctx); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}

	return New(Options{
		Registry: tg.NewRegistry(),
		Sessions: state.NewMemoryManager(),
		Users:    service.NewUsers(userRepo, exchange),
		Exchange: exchange,
	})
}

func step(t *testing.T, b *Bot, userID int64, text string) *fakeContext {
	t.Helper()
	c := newFakeContext(userID, text)
	if err := b.Engine().ManagerHandler(c); err != nil {
		t.Fatalf("dialog step %q: %v", text, err)
	}
	return c
}

func TestAddFlow(t *testing.T) {
	b := newTestBot(t, universe(3))

	c := newFakeContext(1, "/add")
	if err := b.handleAdd(c); err != nil {
		t.Fatalf("handleAdd: %v", err)
	}
	if c.lastSent(t) != messages.AddPromptTicker {
		t.Errorf("prompt = %q", c.lastSent(t))
	}

	// Lower case input is accepted and normalized.
	c = step(t, b, 1, "tkab")
	if c.lastSent(t) != messages.AddPromptAmount {
		t.Errorf("amount prompt = %q", c.lastSent(t))
	}

	c = step(t, b, 1, "10")
	if !strings.Contains(c.lastSent(t), "Ticker TKAB added with 10 lots") {
		t.Errorf("confirmation = %q", c.lastSent(t))
	}
	if b.Engine().InProgress(1) {
		t.Error("dialog still in progress")
	}

	holdings, err := b.users.Holdings(context.Background(), 1)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if holdings["TKAB"].Amount != 10 {
		t.Errorf("holdings = %v", holdings)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	b := newTestBot(t, universe(3))

	if err := b.handleAdd(newFakeContext(1, "/add")); err != nil {
		t.Fatalf("handleAdd: %v", err)
	}

	c := step(t, b, 1, "123")
	if c.lastSent(t) != messages.TickerInvalid {
		t.Errorf("non-alpha reply = %q", c.lastSent(t))
	}
	c = step(t, b, 1, "ZZZZ")
	if c.lastSent(t) != messages.TickerUnknown {
		t.Errorf("unknown ticker reply = %q", c.lastSent(t))
	}

	c = step(t, b, 1, "TKAC")
	if c.lastSent(t) != messages.AddPromptAmount {
		t.Fatalf("amount prompt = %q", c.lastSent(t))
	}
	c = step(t, b, 1, "ten")
	if c.lastSent(t) != messages.AmountInvalid {
		t.Errorf("bad amount reply = %q", c.lastSent(t))
	}
	c = step(t, b, 1, "0")
	if c.lastSent(t) != messages.AmountNotPositive {
		t.Errorf("zero amount reply = %q", c.lastSent(t))
	}
	c = step(t, b, 1, "3")
	if !strings.Contains(c.lastSent(t), "added with 3 lots") {
		t.Errorf("confirmation = %q", c.lastSent(t))
	}
}

func TestAddDuplicateTicker(t *testing.T) {
	b := newTestBot(t, universe(3))
	ctx := context.Background()

	if err := b.users.Ensure(ctx, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := b.users.SetHolding(ctx, 1, "TKAA", 1); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}

	if err := b.handleAdd(newFakeContext(1, "/add")); err != nil {
		t.Fatalf("handleAdd: %v", err)
	}
	c := step(t, b, 1, "TKAA")
	if c.lastSent(t) != messages.TickerAlready {
		t.Errorf("duplicate reply = %q", c.lastSent(t))
	}
	if !b.Engine().InProgress(1) {
		t.Error("dialog aborted on duplicate, should retry")
	}
}

func TestUpdateFlowAcceptsZero(t *testing.T) {
	b := newTestBot(t, universe(3))
	ctx := context.Background()

	if err := b.users.Ensure(ctx, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := b.users.SetHolding(ctx, 1, "TKAB", 5); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}

	if err := b.handleUpdate(newFakeContext(1, "/update")); err != nil {
		t.Fatalf("handleUpdate: %v", err)
	}
	step(t, b, 1, "TKAB")
	c := step(t, b, 1, "0")
	if !strings.Contains(c.lastSent(t), "Ticker TKAB updated") {
		t.Errorf("confirmation = %q", c.lastSent(t))
	}

	holdings, err := b.users.Holdings(ctx, 1)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if holdings["TKAB"].Amount != 0 {
		t.Errorf("amount = %d, want 0", holdings["TKAB"].Amount)
	}
}

func TestUpdateRejectsForeignTicker(t *testing.T) {
	b := newTestBot(t, universe(3))

	if err := b.handleUpdate(newFakeContext(1, "/update")); err != nil {
		t.Fatalf("handleUpdate: %v", err)
	}
	c := step(t, b, 1, "TKAB")
	if c.lastSent(t) != messages.TickerNotYours {
		t.Errorf("reply = %q", c.lastSent(t))
	}
}

func TestDeleteFlow(t *testing.T) {
	b := newTestBot(t, universe(3))
	ctx := context.Background()

	if err := b.users.Ensure(ctx, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := b.users.SetHolding(ctx, 1, "TKAB", 5); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}

	if err := b.handleDelete(newFakeContext(1, "/delete")); err != nil {
		t.Fatalf("handleDelete: %v", err)
	}
	c := step(t, b, 1, "TKAB")
	if !strings.Contains(c.lastSent(t), "Ticker TKAB removed") {
		t.Errorf("confirmation = %q", c.lastSent(t))
	}

	holdings, err := b.users.Holdings(ctx, 1)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("holdings = %v, want empty", holdings)
	}
}

func TestDetailFlow(t *testing.T) {
	b := newTestBot(t, universe(3))
	ctx := context.Background()

	if err := b.users.Ensure(ctx, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := b.users.SetHolding(ctx, 1, "TKAB", 2); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}

	if err := b.handleDetail(newFakeContext(1, "/detail")); err != nil {
		t.Fatalf("handleDetail: %v", err)
	}
	c := step(t, b, 1, "TKAB")
	got := c.lastSent(t)
	for _, want := range []string{
		"You asked for TKAB",
		"Company TKAB",
		"Lot size: 10",
		"Lot price: 1010",
		"Your lots: 2",
		"Total value of your lots: 2020",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("detail reply misses %q:\n%s", want, got)
		}
	}
}

func TestDetailWithoutHolding(t *testing.T) {
	b := newTestBot(t, universe(3))

	if err := b.handleDetail(newFakeContext(2, "/detail")); err != nil {
		t.Fatalf("handleDetail: %v", err)
	}
	c := step(t, b, 2, "TKAA")
	if strings.Contains(c.lastSent(t), "Your lots") {
		t.Errorf("reply shows holdings for a share the user does not own:\n%s", c.lastSent(t))
	}
}

func TestCancelMidDialog(t *testing.T) {
	b := newTestBot(t, universe(3))

	if err := b.handleAdd(newFakeContext(1, "/add")); err != nil {
		t.Fatalf("handleAdd: %v", err)
	}
	step(t, b, 1, "TKAB")
	c := step(t, b, 1, "/cancel")
	if len(c.sent) != 0 {
		t.Errorf("cancel replied with %v", c.sent)
	}
	if b.Engine().InProgress(1) {
		t.Error("dialog still in progress after cancel")
	}

	holdings, err := b.users.Holdings(context.Background(), 1)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("cancelled dialog wrote holdings: %v", holdings)
	}
}

func TestEscapeToTickerList(t *testing.T) {
	b := newTestBot(t, universe(3))

	if err := b.handleAdd(newFakeContext(1, "/add")); err != nil {
		t.Fatalf("handleAdd: %v", err)
	}
	c := step(t, b, 1, "/ticker_list")
	if !strings.Contains(c.lastSent(t), "Tickers:") {
		t.Errorf("escape reply = %q", c.lastSent(t))
	}
	if b.Engine().InProgress(1) {
		t.Error("dialog survived escape command")
	}
}

func TestTickerListPagination(t *testing.T) {
	b := newTestBot(t, universe(120))

	c := newFakeContext(1, "/ticker_list")
	if err := b.handleTickerList(c); err != nil {
		t.Fatalf("handleTickerList: %v", err)
	}
	got := c.lastSent(t)
	if !strings.Contains(got, "Page 1/3") {
		t.Errorf("reply = %q", got)
	}
	if c.lastOpts == nil || c.lastOpts.ReplyMarkup == nil {
		t.Fatal("page 1 has no keyboard")
	}
	if rows := c.lastOpts.ReplyMarkup.InlineKeyboard; len(rows) != 1 {
		t.Errorf("page 1 keyboard rows = %d, want 1 (next only)", len(rows))
	}

	c = newFakeContext(1, "/ticker_list 2")
	c.payload = "2"
	if err := b.handleTickerList(c); err != nil {
		t.Fatalf("handleTickerList page 2: %v", err)
	}
	if !strings.Contains(c.lastSent(t), "Page 2/3") {
		t.Errorf("reply = %q", c.lastSent(t))
	}
	if rows := c.lastOpts.ReplyMarkup.InlineKeyboard; len(rows) != 2 {
		t.Errorf("page 2 keyboard rows = %d, want 2", len(rows))
	}

	// A non-numeric argument falls back to page one.
	c = newFakeContext(1, "/ticker_list abc")
	c.payload = "abc"
	if err := b.handleTickerList(c); err != nil {
		t.Fatalf("handleTickerList bad arg: %v", err)
	}
	if !strings.Contains(c.lastSent(t), "Page 1/3") {
		t.Errorf("reply = %q", c.lastSent(t))
	}
}

func TestTickerListOutOfRange(t *testing.T) {
	b := newTestBot(t, universe(120))

	c := newFakeContext(1, "/ticker_list 9")
	c.payload = "9"
	if err := b.handleTickerList(c); err != nil {
		t.Fatalf("handleTickerList: %v", err)
	}
	if got := c.lastSent(t); got != "You asked for page 9. Enter a value between 1 and 3" {
		t.Errorf("reply = %q", got)
	}
}

func TestTickerListCallback(t *testing.T) {
	b := newTestBot(t, universe(120))

	c := newFakeContext(1, "")
	c.callback = &tele.Callback{Data: "\\fticker_list_next_page|2"}
	if err := b.handleTickerListPage(c); err != nil {
		t.Fatalf("handleTickerListPage: %v", err)
	}
	if !strings.Contains(c.lastSent(t), "Page 2/3") {
		t.Errorf("reply = %q", c.lastSent(t))
	}
}

func TestMyTickersAndPortfolio(t *testing.T) {
	b := newTestBot(t, universe(3))
	ctx := context.Background()

	c := newFakeContext(1, "/my_tickers")
	if err := b.handleMyTickers(c); err != nil {
		t.Fatalf("handleMyTickers: %v", err)
	}
	if c.lastSent(t) != messages.PortfolioEmpty {
		t.Errorf("empty portfolio reply = %q", c.lastSent(t))
	}

	if err := b.users.SetHolding(ctx, 1, "TKAA", 2); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}
	if err := b.users.SetHolding(ctx, 1, "TKAB", 1); err != nil {
		t.Fatalf("SetHolding: %v", err)
	}

	c = newFakeContext(1, "/my_tickers")
	if err := b.handleMyTickers(c); err != nil {
		t.Fatalf("handleMyTickers: %v", err)
	}
	got := c.lastSent(t)
	for _, want := range []string{"TKAA - 2 - 2000", "TKAB - 1 - 1010"} {
		if !strings.Contains(got, want) {
			t.Errorf("reply misses %q:\n%s", want, got)
		}
	}

	c = newFakeContext(1, "/my_investment_portfolio")
	if err := b.handlePortfolio(c); err != nil {
		t.Fatalf("handlePortfolio: %v", err)
	}
	if !strings.Contains(c.lastSent(t), "3010") {
		t.Errorf("portfolio reply = %q", c.lastSent(t))
	}
}

func TestCancelOutsideDialog(t *testing.T) {
	b := newTestBot(t, universe(1))

	c := newFakeContext(1, "/cancel")
	if err := b.handleCancel(c); err != nil {
		t.Fatalf("handleCancel: %v", err)
	}
	if c.lastSent(t) != messages.Cancelled {
		t.Errorf("reply = %q", c.lastSent(t))
	}
}

func TestUnknownText(t *testing.T) {
	b := newTestBot(t, universe(1))

	c := newFakeContext(1, "/bogus")
	if err := b.UnknownText()(c); err != nil {
		t.Fatalf("UnknownText: %v", err)
	}
	if c.lastSent(t) != messages.UnknownCommand {
		t.Errorf("reply = %q", c.lastSent(t))
	}

	c = newFakeContext(1, "just chatting")
	if err := b.UnknownText()(c); err != nil {
		t.Fatalf("UnknownText: %v", err)
	}
	if len(c.sent) != 0 {
		t.Errorf("plain text got a reply: %v", c.sent)
	}
}

func TestStartEnsuresUser(t *testing.T) {
	b := newTestBot(t, universe(1))

	c := newFakeContext(9, "/start")
	if err := b.handleStart(c); err != nil {
		t.Fatalf("handleStart: %v", err)
	}
	if c.lastSent(t) != messages.Start {
		t.Errorf("reply = %q", c.lastSent(t))
	}

	holdings, err := b.users.Holdings(context.Background(), 9)
	if err != nil {
		t.Fatalf("Holdings: %v", err)
	}
	if len(holdings) != 0 {
		t.Errorf("holdings = %v, want empty", holdings)
	}
}

func TestAmountStepWithoutCapturedTicker(t *testing.T) {
	b := newTestBot(t, universe(3))

	// Amount state with no ticker captured, as after a process restart.
	b.Engine().Sessions().SetState(1, StateAddAmount)
	c := step(t, b, 1, "5")
	if c.lastSent(t) != messages.DialogExpired {
		t.Errorf("reply = %q", c.lastSent(t))
	}
	if b.Engine().InProgress(1) {
		t.Error("expired dialog should end")
	}

	b.Engine().Sessions().SetState(1, StateUpdateAmount)
	c = step(t, b, 1, "0")
	if c.lastSent(t) != messages.DialogExpired {
		t.Errorf("update reply = %q", c.lastSent(t))
	}
	if b.Engine().InProgress(1) {
		t.Error("expired update dialog should end")
	}
}
