// Package pending tracks single-shot reply expectations: a prompt is sent,
// exactly one matching inbound message consumes the marker. Unlike sessions,
// markers carry no steps and are keyed either by chat or by the prompted
// message, so they coexist with an active flow.
package pending

import (
	"strconv"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Handler consumes the single reply a marker was waiting for.
type Handler func(c tele.Context) error

// Listeners stores pending single-shot handlers.
type Listeners struct {
	mu     sync.Mutex
	byChat map[int64]Handler
	byMsg  map[string]Handler
}

// NewListeners constructs an empty marker set.
func NewListeners() *Listeners {
	return &Listeners{
		byChat: make(map[int64]Handler),
		byMsg:  make(map[string]Handler),
	}
}

// ExpectFromChat arms a marker consumed by the next text from the chat.
// A second call for the same chat replaces the first.
func (l *Listeners) ExpectFromChat(chatID int64, h Handler) {
	if h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byChat[chatID] = h
}

// ExpectReplyTo arms a marker consumed by a reply to the given message.
func (l *Listeners) ExpectReplyTo(messageID string, h Handler) {
	if h == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byMsg[messageID] = h
}

// CancelChat drops the chat-keyed marker if armed.
func (l *Listeners) CancelChat(chatID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byChat, chatID)
}

// Claim consumes and returns the marker matching the inbound message: a
// reply-keyed marker first, then the chat-keyed one. The marker is removed
// before the handler runs, so it fires at most once.
func (l *Listeners) Claim(c tele.Context) (Handler, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg := c.Message(); msg != nil && msg.ReplyTo != nil {
		key := replyKey(msg.Chat.ID, msg.ReplyTo.ID)
		if h, ok := l.byMsg[key]; ok {
			delete(l.byMsg, key)
			return h, true
		}
	}
	chatID := c.Chat().ID
	if h, ok := l.byChat[chatID]; ok {
		delete(l.byChat, chatID)
		return h, true
	}
	return nil, false
}

// ReplyKey builds the message-scoped marker key for ExpectReplyTo.
func ReplyKey(chatID int64, messageID int) string {
	return replyKey(chatID, messageID)
}

func replyKey(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.Itoa(messageID)
}
