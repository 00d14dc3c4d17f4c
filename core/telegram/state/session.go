// Package state tracks per-user conversation sessions. It knows nothing
// about dialog steps themselves; the dialog engine owns those and uses the
// manager only to remember which step a user is on and what partial input
// has been captured so far.
package state

// State names a conversation step.
type State string

// StateIdle means the user has no conversation in progress.
const StateIdle State = "idle"

// Session holds the current step and captured input for one user.
type Session struct {
	State    State
	TempData map[string]interface{}
}

// Manager stores sessions keyed by Telegram user ID.
type Manager interface {
	SetState(userID int64, st State)
	GetState(userID int64) State

	SetTemp(userID int64, key string, value interface{})
	GetTemp(userID int64, key string) (interface{}, bool)
	GetTempString(userID int64, key string) (string, bool)

	// Clear drops the whole session, step and captured input both.
	Clear(userID int64)

	InProgress(userID int64) bool
}
