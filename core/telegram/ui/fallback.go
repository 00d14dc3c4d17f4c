// Package ui declares the contract between the routers and the bot's
// fallback handlers.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider supplies handlers for updates that matched no command,
// callback key, or document route.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
