// Package messages holds every user-facing text of the bot in one
// place: command menu descriptions, dialog prompts and error replies.
package messages

// Command menu descriptions.
const (
	HelpDescription       = "how to use the bot"
	AddDescription        = "add a ticker to your portfolio"
	TickerListDescription = "list all known tickers"
	DetailDescription     = "show details for one ticker"
	DeleteDescription     = "remove a ticker from your portfolio"
	UpdateDescription     = "change the lot amount for a ticker"
	MyTickersDescription  = "show your portfolio"
	PortfolioDescription  = "show your portfolio value"
	CancelDescription     = "cancel the current dialog"
)

// Start and help.
const (
	Start = "Hi! I track your share portfolio.\n" +
		"Add a ticker with /add, list all tickers with /ticker_list.\n" +
		"Send /help for the full command list."

	Help = "I keep a list of your shares and tell you how their value changes.\n\n" +
		"/add - add a ticker to your portfolio\n" +
		"/ticker_list - list all known tickers\n" +
		"/detail - details for one ticker\n" +
		"/update - change the lot amount for a ticker\n" +
		"/delete - remove a ticker from your portfolio\n" +
		"/my_tickers - your portfolio\n" +
		"/my_investment_portfolio - your portfolio value\n" +
		"/cancel - cancel the current dialog"
)

// Dialog prompts.
const (
	AddPromptTicker    = "Send the ticker you want to add.\nAll known tickers are available via /ticker_list"
	AddPromptAmount    = "How many lots do you own?"
	UpdatePromptTicker = "Send the ticker you want to update.\nYour tickers are available via /my_tickers"
	UpdatePromptAmount = "Send the new lot amount"
	DeletePromptTicker = "Send the ticker you want to remove.\nYour tickers are available via /my_tickers"
	DetailPromptTicker = "Send the ticker you are interested in.\nAll known tickers are available via /ticker_list"
)

// Dialog validation errors.
const (
	TickerInvalid     = "A ticker is letters only, like SBER. Try again or send /cancel"
	TickerUnknown     = "I don't know this ticker. Pick one from /ticker_list or send /cancel"
	TickerAlready     = "This ticker is already in your portfolio. Send another one or /cancel"
	TickerNotYours    = "This ticker is not in your portfolio. Pick one from /my_tickers or send /cancel"
	AmountInvalid     = "The lot amount must be a whole number. Try again or send /cancel"
	AmountNotPositive = "The lot amount must be greater than zero. Try again or send /cancel"
)

// Plain replies.
const (
	Cancelled      = "Nothing to cancel: no dialog is active"
	UnknownCommand = "No such command"
	PortfolioEmpty = "Your portfolio is empty. Add a ticker with /add"
	DialogExpired  = "I lost track of this dialog. Please start over"
)

// Composed replies.
const (
	AddedFmt = "Ticker %s added with %d lots\n" +
		"Remove it from your list with /delete\n" +
		"Change the lot amount with /update"
	UpdatedFmt = "Ticker %s updated\n" +
		"Remove it from your list with /delete"
	DeletedFmt = "Ticker %s removed"

	DetailFmt = "You asked for %s\n" +
		"This is the ticker of %s\n" +
		"Price per share: %s\n" +
		"Lot size: %d\n" +
		"Lot price: %s"
	DetailOwnedFmt = "\n\nYour lots: %d\n" +
		"Total value of your lots: %s"

	TickerLineFmt = "%s - %d - %s₽"
	MyTickersFmt  = "Your tickers:\n%s\n" +
		"Add a new one with /add\n" +
		"Remove one with /delete"
	PortfolioFmt = "Your portfolio is currently worth %s₽"

	TickerListFmt = "Tickers:\n%s\n" +
		"Page %d/%d\n" +
		"Get more info about a ticker with /detail"

	ChangeFmt = "Change in portfolio value: %s"

	RefreshDone = "Market data refreshed"
)

// Pagination buttons.
const (
	PrevPageButton = "Previous page"
	NextPageButton = "Next page"
)
