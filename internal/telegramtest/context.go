// Package telegramtest provides a recording tele.Context double for flow and
// dispatcher tests. Only the methods the conversation engine touches are
// implemented; anything else panics through the embedded nil interface.
package telegramtest

import (
	tele "gopkg.in/telebot.v4"
)

// Ctx is a fake tele.Context that records outbound sends.
type Ctx struct {
	tele.Context

	ChatID int64
	UserID int64
	Txt    string
	Cb     *tele.Callback
	Msg    *tele.Message

	Sent []string

	store map[string]any
}

// NewText builds a context carrying an inbound text message.
func NewText(chatID int64, text string) *Ctx {
	return &Ctx{
		ChatID: chatID,
		UserID: chatID,
		Txt:    text,
		store:  make(map[string]any),
	}
}

// NewCallback builds a context carrying a button press. unique and payload
// are encoded the way the callback router parses them.
func NewCallback(chatID int64, unique, payload string) *Ctx {
	c := NewText(chatID, "")
	c.Cb = &tele.Callback{Data: "\\f" + unique + "|" + payload}
	return c
}

func (c *Ctx) Chat() *tele.Chat { return &tele.Chat{ID: c.ChatID} }

func (c *Ctx) Sender() *tele.User { return &tele.User{ID: c.UserID} }

func (c *Ctx) Text() string { return c.Txt }

func (c *Ctx) Message() *tele.Message { return c.Msg }

func (c *Ctx) Callback() *tele.Callback { return c.Cb }

func (c *Ctx) Update() tele.Update { return tele.Update{} }

func (c *Ctx) Get(key string) any { return c.store[key] }

func (c *Ctx) Set(key string, val any) { c.store[key] = val }

func (c *Ctx) Respond(_ ...*tele.CallbackResponse) error { return nil }

// Send records the outbound text instead of hitting Telegram.
func (c *Ctx) Send(what any, _ ...any) error {
	if s, ok := what.(string); ok {
		c.Sent = append(c.Sent, s)
	}
	return nil
}

// LastSent returns the most recent outbound text, or "".
func (c *Ctx) LastSent() string {
	if len(c.Sent) == 0 {
		return ""
	}
	return c.Sent[len(c.Sent)-1]
}
