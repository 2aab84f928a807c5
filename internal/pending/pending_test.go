package pending_test

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"pedidosbot/internal/pending"
	"pedidosbot/internal/telegramtest"
)

func TestChatMarkerFiresOnce(t *testing.T) {
	l := pending.NewListeners()
	fired := 0
	l.ExpectFromChat(1, func(c tele.Context) error {
		fired++
		return nil
	})

	c := telegramtest.NewText(1, "5")
	h, ok := l.Claim(c)
	if !ok {
		t.Fatal("expected marker to claim the message")
	}
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if fired != 1 {
		t.Fatalf("handler fired %d times, want 1", fired)
	}

	if _, ok := l.Claim(telegramtest.NewText(1, "5")); ok {
		t.Fatal("marker claimed twice")
	}
}

func TestChatMarkerDoesNotCrossChats(t *testing.T) {
	l := pending.NewListeners()
	l.ExpectFromChat(1, func(tele.Context) error { return nil })

	if _, ok := l.Claim(telegramtest.NewText(2, "5")); ok {
		t.Fatal("marker for chat 1 claimed a message from chat 2")
	}
	if _, ok := l.Claim(telegramtest.NewText(1, "5")); !ok {
		t.Fatal("marker missing for its own chat")
	}
}

func TestReplyMarkerWinsOverChatMarker(t *testing.T) {
	l := pending.NewListeners()
	var got string
	l.ExpectFromChat(1, func(tele.Context) error { got = "chat"; return nil })
	l.ExpectReplyTo(pending.ReplyKey(1, 7), func(tele.Context) error { got = "reply"; return nil })

	c := telegramtest.NewText(1, "mañana")
	c.Msg = &tele.Message{
		Chat:    &tele.Chat{ID: 1},
		ReplyTo: &tele.Message{ID: 7},
	}
	h, ok := l.Claim(c)
	if !ok {
		t.Fatal("expected reply marker to claim")
	}
	_ = h(c)
	if got != "reply" {
		t.Fatalf("claimed %q marker, want reply", got)
	}

	// The chat marker is still armed for a plain message.
	if _, ok := l.Claim(telegramtest.NewText(1, "x")); !ok {
		t.Fatal("chat marker should remain armed")
	}
}

func TestCancelChatDropsMarker(t *testing.T) {
	l := pending.NewListeners()
	l.ExpectFromChat(1, func(tele.Context) error { return nil })
	l.CancelChat(1)

	if _, ok := l.Claim(telegramtest.NewText(1, "5")); ok {
		t.Fatal("cancelled marker still claimed")
	}
}

func TestReplacingChatMarker(t *testing.T) {
	l := pending.NewListeners()
	var got string
	l.ExpectFromChat(1, func(tele.Context) error { got = "first"; return nil })
	l.ExpectFromChat(1, func(tele.Context) error { got = "second"; return nil })

	h, ok := l.Claim(telegramtest.NewText(1, "5"))
	if !ok {
		t.Fatal("expected marker")
	}
	_ = h(nil)
	if got != "second" {
		t.Fatalf("claimed %q, want second", got)
	}
}
