// Package dialog runs multi-step text conversations on top of the
// session manager. The engine owns the step table: each state maps to
// one Step, and plain text from a user with an active state is routed
// to that step's handler.
package dialog

import (
	"strings"

	tghelpers "github.com/mkorobov/tickertrack/core/telegram/helpers"
	"github.com/mkorobov/tickertrack/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// cancelCommand aborts any dialog silently at any step.
const cancelCommand = "/cancel"

// Result tells the engine what to do after a step handler ran.
type Result struct {
	// Next is the state to move to. StateIdle ends the dialog.
	Next state.State
	// Invalid asks the engine to reply with the step's ErrorText and
	// keep the user on the same step. Next is ignored.
	Invalid bool
}

// Step is one state of a conversation.
type Step struct {
	// Handle processes the user's text. It may send replies of its
	// own, for example the prompt of the next step.
	Handle func(c tele.Context, text string) (Result, error)
	// ErrorText is sent when Handle reports invalid input.
	ErrorText string
	// Escapes lists exact command texts that abort the dialog and are
	// re-dispatched as regular commands.
	Escapes []string
}

// Dispatch re-runs a command handler for an escape command.
type Dispatch func(c tele.Context, command string) error

// Engine routes in-dialog text messages to step handlers.
type Engine struct {
	sessions state.Manager
	steps    map[state.State]Step
	dispatch Dispatch
}

// New creates an engine over the given session manager. dispatch is
// used to hand escape commands back to normal command routing.
func New(sessions state.Manager, dispatch Dispatch) *Engine {
	return &Engine{
		sessions: sessions,
		steps:    make(map[state.State]Step),
		dispatch: dispatch,
	}
}

// Register binds a step to a state. Later registrations win.
func (e *Engine) Register(st state.State, step Step) {
	e.steps[st] = step
}

// Sessions exposes the underlying session manager for handlers that
// stash partial input between steps.
func (e *Engine) Sessions() state.Manager {
	return e.sessions
}

// Start opens a dialog: sends the first prompt and sets the state.
func (e *Engine) Start(c tele.Context, st state.State, prompt string) error {
	if err := tghelpers.SendText(c, prompt); err != nil {
		return err
	}
	e.sessions.SetState(c.Sender().ID, st)
	return nil
}

// InProgress reports whether the user has an active dialog.
func (e *Engine) InProgress(userID int64) bool {
	return e.sessions.InProgress(userID)
}

// ManagerHandler processes one text update for a user with an active
// dialog. Cancel aborts silently, escape commands abort and
// re-dispatch, invalid input replays the step's error text, anything
// else advances the state machine.
func (e *Engine) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	text := c.Text()

	if strings.HasPrefix(text, cancelCommand) {
		e.sessions.Clear(userID)
		return nil
	}

	st := e.sessions.GetState(userID)
	step, ok := e.steps[st]
	if !ok {
		e.sessions.Clear(userID)
		return nil
	}

	for _, esc := range step.Escapes {
		if text == esc {
			e.sessions.Clear(userID)
			if e.dispatch != nil {
				return e.dispatch(c, esc)
			}
			return nil
		}
	}

	res, err := step.Handle(c, text)
	if err != nil {
		return err
	}
	if res.Invalid {
		return tghelpers.SendText(c, step.ErrorText)
	}
	if res.Next == state.StateIdle || res.Next == "" {
		e.sessions.Clear(userID)
		return nil
	}
	e.sessions.SetState(userID, res.Next)
	return nil
}
