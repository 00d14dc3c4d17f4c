// Package job runs the periodic market refresh and the change
// notification fan-out.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mkorobov/tickertrack/bot/messages"
	"github.com/mkorobov/tickertrack/core/logger"
	"github.com/mkorobov/tickertrack/service"
	"github.com/shopspring/decimal"

	tele "gopkg.in/telebot.v4"
)

// Sender delivers a message to a chat. *tele.Bot satisfies it.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Notifier refreshes market data and tells every user with a
// non-empty portfolio how its value changed.
type Notifier struct {
	exchange *service.Exchange
	users    *service.Users
	sender   Sender
}

// NewNotifier wires the refresh-and-notify cycle.
func NewNotifier(exchange *service.Exchange, users *service.Users, sender Sender) *Notifier {
	return &Notifier{exchange: exchange, users: users, sender: sender}
}

// Run executes one refresh-and-notify cycle. A failed refresh aborts
// the cycle; a failed send to one user is logged and does not stop
// the fan-out.
func (n *Notifier) Run(ctx context.Context) error {
	runID := uuid.NewString()
	start := time.Now()

	if err := n.exchange.Refresh(ctx); err != nil {
		logger.LogEvent(ctx, logger.Job, slog.LevelError, "refresh",
			slog.String("run_id", runID),
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
		return err
	}

	ids, err := n.users.AllIDs(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.Job, slog.LevelError, "list_users",
			slog.String("run_id", runID),
			slog.String("status", "error"),
			slog.String("err", err.Error()),
		)
		return err
	}

	notified := 0
	for _, id := range ids {
		sent, err := n.notifyUser(ctx, id)
		if err != nil {
			logger.LogEvent(ctx, logger.Job, slog.LevelWarn, "notify_user",
				slog.String("run_id", runID),
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
			continue
		}
		if sent {
			notified++
		}
	}

	logger.LogEvent(ctx, logger.Job, slog.LevelInfo, "cycle",
		slog.String("run_id", runID),
		slog.String("status", "ok"),
		slog.Int("users_total", len(ids)),
		slog.Int("users_notified", notified),
		slog.Duration("duration", logger.RoundMS(logger.Took(start))),
	)
	return nil
}

// notifyUser sends the aggregate change for one user. Users with an
// empty portfolio are skipped.
func (n *Notifier) notifyUser(ctx context.Context, id int64) (bool, error) {
	positions, err := n.users.Positions(ctx, id, true)
	if err != nil {
		return false, err
	}
	if len(positions) == 0 {
		return false, nil
	}

	total := decimal.Zero
	for _, pos := range positions {
		total = total.Add(pos.Change)
	}

	text := fmt.Sprintf(messages.ChangeFmt, formatChange(total))
	if _, err := n.sender.Send(tele.ChatID(id), text); err != nil {
		return false, err
	}
	return true, nil
}

// formatChange renders a signed total, keeping an explicit plus on
// gains and on zero.
func formatChange(total decimal.Decimal) string {
	if total.Sign() >= 0 {
		return "+" + total.String()
	}
	return total.String()
}
