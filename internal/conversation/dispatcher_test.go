package conversation_test

import (
	"os"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"pedidosbot/core/logger"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/telegramtest"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// stubFlow is a minimal Flow whose steps advance on "ok" and re-prompt on
// anything else.
type stubFlow struct {
	name  string
	steps conversation.StepTable
}

func (f *stubFlow) Name() string                  { return f.name }
func (f *stubFlow) NewData() any                  { return &struct{ Seen int }{} }
func (f *stubFlow) Steps() conversation.StepTable { return f.steps }

func newStubFlow(name string, store func() conversation.Store) *stubFlow {
	f := &stubFlow{name: name}
	step := func(c tele.Context, s *conversation.Session) error {
		if strings.TrimSpace(c.Text()) != "ok" {
			return c.Send("retry")
		}
		store().Advance(s.ChatID)
		return c.Send("advanced")
	}
	f.steps = conversation.StepTable{0: step, 1: step, 2: step}
	return f
}

func newDispatcher(t *testing.T) (*conversation.Dispatcher, *stubFlow) {
	t.Helper()
	d := conversation.NewDispatcher(conversation.NewMemoryStore(), "/cancelar")
	f := newStubFlow("stub", func() conversation.Store { return d.Sessions() })
	if err := d.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	return d, f
}

func TestHandleTextNoSessionIsUnhandled(t *testing.T) {
	d, _ := newDispatcher(t)
	c := telegramtest.NewText(100, "/cancelar")
	handled, err := d.HandleText(c)
	if handled || err != nil {
		t.Fatalf("HandleText = (%v, %v), want (false, nil)", handled, err)
	}
	if len(c.Sent) != 0 {
		t.Fatalf("expected no messages, got %v", c.Sent)
	}
}

func TestStepAdvancesExactlyOncePerEvent(t *testing.T) {
	d, _ := newDispatcher(t)
	if _, err := d.Begin(telegramtest.NewText(100, ""), "stub"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	for want := 1; want <= 3; want++ {
		c := telegramtest.NewText(100, "ok")
		handled, err := d.HandleText(c)
		if !handled || err != nil {
			t.Fatalf("HandleText = (%v, %v), want handled", handled, err)
		}
		s, ok := d.Sessions().Get(100)
		if !ok || s.Step != want {
			t.Fatalf("step = %d, want %d", s.Step, want)
		}
	}
}

func TestInvalidInputDoesNotAdvance(t *testing.T) {
	d, _ := newDispatcher(t)
	if _, err := d.Begin(telegramtest.NewText(100, ""), "stub"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	for i := 0; i < 3; i++ {
		c := telegramtest.NewText(100, "garbage")
		handled, err := d.HandleText(c)
		if !handled || err != nil {
			t.Fatalf("HandleText = (%v, %v), want handled", handled, err)
		}
		if c.LastSent() != "retry" {
			t.Fatalf("expected re-prompt, got %q", c.LastSent())
		}
	}
	if s, _ := d.Sessions().Get(100); s.Step != 0 {
		t.Fatalf("step = %d after invalid input, want 0", s.Step)
	}
}

func TestCancelTokenIsCaseInsensitive(t *testing.T) {
	for _, token := range []string{"/cancelar", "/Cancelar", "/CANCELAR"} {
		d, _ := newDispatcher(t)
		if _, err := d.Begin(telegramtest.NewText(100, ""), "stub"); err != nil {
			t.Fatalf("begin: %v", err)
		}

		c := telegramtest.NewText(100, token)
		handled, err := d.HandleText(c)
		if !handled || err != nil {
			t.Fatalf("HandleText(%q) = (%v, %v), want handled", token, handled, err)
		}
		if _, ok := d.Sessions().Get(100); ok {
			t.Fatalf("session survived cancel token %q", token)
		}
		if len(c.Sent) != 1 {
			t.Fatalf("cancel sent %d messages, want exactly 1", len(c.Sent))
		}
	}
}

func TestUnknownStepEndsFlow(t *testing.T) {
	d, _ := newDispatcher(t)
	s, err := d.Begin(telegramtest.NewText(100, ""), "stub")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	s.Step = 99
	d.Sessions().Save(s)

	c := telegramtest.NewText(100, "ok")
	handled, err := d.HandleText(c)
	if !handled || err != nil {
		t.Fatalf("HandleText = (%v, %v), want handled", handled, err)
	}
	if _, ok := d.Sessions().Get(100); ok {
		t.Fatal("session survived unknown step")
	}
	if c.LastSent() == "" {
		t.Fatal("expected an error message for unknown step")
	}
}

func TestClaimChecksFlowOwnership(t *testing.T) {
	d, _ := newDispatcher(t)
	other := newStubFlow("other", func() conversation.Store { return d.Sessions() })
	if err := d.Register(other); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := d.Begin(telegramtest.NewText(100, ""), "stub"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	c := telegramtest.NewText(100, "")
	if _, ok := d.Claim(c, "other"); ok {
		t.Fatal("claim succeeded for a flow that does not own the session")
	}
	if _, ok := d.Claim(c, "stub"); !ok {
		t.Fatal("claim failed for the owning flow")
	}
}

func TestBeginSilentlyReplacesSession(t *testing.T) {
	d, _ := newDispatcher(t)
	other := newStubFlow("other", func() conversation.Store { return d.Sessions() })
	if err := d.Register(other); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := d.Begin(telegramtest.NewText(100, ""), "stub"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c := telegramtest.NewText(100, "")
	if _, err := d.Begin(c, "other"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	s, ok := d.Sessions().Get(100)
	if !ok || s.Flow != "other" || s.Step != 0 {
		t.Fatalf("session = %+v, want flow other at step 0", s)
	}
	if len(c.Sent) != 0 {
		t.Fatalf("overwrite must be silent, got %v", c.Sent)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	d, f := newDispatcher(t)
	if err := d.Register(f); err == nil {
		t.Fatal("expected error registering the same flow twice")
	}
}
