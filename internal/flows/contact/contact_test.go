package contact_test

import (
	"errors"
	"os"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"pedidosbot/core/logger"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/flows/contact"
	"pedidosbot/internal/storage"
	"pedidosbot/internal/telegramtest"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeForwarder struct {
	forwarded []string
	err       error
}

func (f *fakeForwarder) Forward(_ tele.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.forwarded = append(f.forwarded, text)
	return nil
}

func newFixture(t *testing.T, fwd *fakeForwarder) (*conversation.Dispatcher, *contact.Flow) {
	t.Helper()
	conv := conversation.NewDispatcher(conversation.NewMemoryStore(), "/cancelar")
	f := contact.New(conv, fwd)
	if err := conv.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	return conv, f
}

func TestMessageForwardedWithSellerIdentity(t *testing.T) {
	fwd := &fakeForwarder{}
	conv, f := newFixture(t, fwd)

	c := telegramtest.NewText(700, "")
	if err := f.Begin(c, storage.Seller{Company: 1, Code: 9, Name: "Marta"}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	c = telegramtest.NewText(700, "no veo los precios nuevos")
	if handled, err := conv.HandleText(c); !handled || err != nil {
		t.Fatalf("HandleText = (%v, %v)", handled, err)
	}
	if len(fwd.forwarded) != 1 {
		t.Fatalf("forwarded = %d messages, want 1", len(fwd.forwarded))
	}
	got := fwd.forwarded[0]
	if !strings.Contains(got, "Marta") || !strings.Contains(got, "no veo los precios nuevos") {
		t.Fatalf("forwarded message = %q", got)
	}
	if !strings.Contains(c.LastSent(), "enviada") {
		t.Fatalf("expected delivery ack, got %q", c.LastSent())
	}
	if _, ok := conv.Sessions().Get(700); ok {
		t.Fatal("session should end after forwarding")
	}
}

func TestEmptyMessageReprompts(t *testing.T) {
	fwd := &fakeForwarder{}
	conv, f := newFixture(t, fwd)

	c := telegramtest.NewText(700, "")
	if err := f.Begin(c, storage.Seller{Company: 1}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	c = telegramtest.NewText(700, "   ")
	if handled, err := conv.HandleText(c); !handled || err != nil {
		t.Fatalf("HandleText = (%v, %v)", handled, err)
	}
	if len(fwd.forwarded) != 0 {
		t.Fatal("empty message must not be forwarded")
	}
	if _, ok := conv.Sessions().Get(700); !ok {
		t.Fatal("session must survive the re-prompt")
	}
}

func TestForwardFailureEndsFlow(t *testing.T) {
	fwd := &fakeForwarder{err: errors.New("admin unreachable")}
	conv, f := newFixture(t, fwd)

	c := telegramtest.NewText(700, "")
	if err := f.Begin(c, storage.Seller{Company: 1}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	c = telegramtest.NewText(700, "hola")
	if handled, err := conv.HandleText(c); !handled || err != nil {
		t.Fatalf("HandleText = (%v, %v)", handled, err)
	}
	if !strings.Contains(c.LastSent(), "No pude enviar") {
		t.Fatalf("expected failure message, got %q", c.LastSent())
	}
	if _, ok := conv.Sessions().Get(700); ok {
		t.Fatal("session should end on forward failure")
	}
}
