// Package commands defines the command metadata stored in the registry.
package commands

import tele "gopkg.in/telebot.v4"

// Command couples a handler with how the command is presented and guarded.
// AdminOnly commands are additionally wrapped with the admin middleware
// when routes are built; Hidden ones stay out of the Telegram menu.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
