// Package ui holds the user-facing handlers that are not tied to a specific
// command or flow.
package ui

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "pedidosbot/core/telegram/helpers"
)

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, or expected documents.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Fallbacks is the default FallbackProvider: it nudges the user back to the
// main menu instead of staying silent.
type Fallbacks struct{}

// UnknownText implements FallbackProvider.
func (Fallbacks) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "No entendí eso. Usá el menú o escribí /start.")
	}
}

// UnknownDocument implements FallbackProvider.
func (Fallbacks) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "No proceso archivos. Usá el menú o escribí /start.")
	}
}

// UnknownCallback implements FallbackProvider.
func (Fallbacks) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		// The callback was already answered; an expired button needs no reply.
		return nil
	}
}
