package stock_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"pedidosbot/core/logger"
	tg "pedidosbot/core/telegram"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/flows/stock"
	"pedidosbot/internal/pending"
	"pedidosbot/internal/storage"
	"pedidosbot/internal/telegramtest"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeInventory struct {
	product storage.Product
	deltas  []int
}

func (f *fakeInventory) GetByCode(_ context.Context, _, code int) (storage.Product, error) {
	if code != f.product.Code {
		return storage.Product{}, storage.ErrNotFound
	}
	return f.product, nil
}

func (f *fakeInventory) AdjustStock(_ context.Context, _, _, delta int) (int, error) {
	f.deltas = append(f.deltas, delta)
	f.product.Stock += delta
	return f.product.Stock, nil
}

type fixture struct {
	conv      *conversation.Dispatcher
	reg       *tg.Registry
	flow      *stock.Flow
	listeners *pending.Listeners
	inventory *fakeInventory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conv := conversation.NewDispatcher(conversation.NewMemoryStore(), "/cancelar")
	listeners := pending.NewListeners()
	inventory := &fakeInventory{product: storage.Product{Code: 7, Name: "Bidón 20L", Stock: 10}}

	f := stock.New(conv, inventory, listeners)
	if err := conv.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg := tg.NewRegistry()
	if err := f.Callbacks(reg); err != nil {
		t.Fatalf("callbacks: %v", err)
	}
	return &fixture{conv: conv, reg: reg, flow: f, listeners: listeners, inventory: inventory}
}

func (fx *fixture) prompt(t *testing.T, chatID int64, dir string) {
	t.Helper()
	c := telegramtest.NewText(chatID, "")
	if err := fx.flow.Begin(c, storage.Seller{Company: 1, Code: 9}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c = telegramtest.NewText(chatID, "7")
	if handled, err := fx.conv.HandleText(c); !handled || err != nil {
		t.Fatalf("HandleText = (%v, %v)", handled, err)
	}
	h, ok := fx.reg.GetCallback("st_dir")
	if !ok {
		t.Fatal("direction callback not registered")
	}
	if err := h(telegramtest.NewCallback(chatID, "st_dir", dir)); err != nil {
		t.Fatalf("direction: %v", err)
	}
}

func (fx *fixture) reply(t *testing.T, chatID int64, text string) (*telegramtest.Ctx, bool) {
	t.Helper()
	c := telegramtest.NewText(chatID, text)
	h, ok := fx.listeners.Claim(c)
	if !ok {
		return c, false
	}
	if err := h(c); err != nil {
		t.Fatalf("marker handler: %v", err)
	}
	return c, true
}

func TestIngressAdjustsStock(t *testing.T) {
	fx := newFixture(t)
	fx.prompt(t, 400, "in")

	// The session is gone: the quantity lives in a single-shot marker.
	if _, ok := fx.conv.Sessions().Get(400); ok {
		t.Fatal("session should end once the marker is armed")
	}

	c, ok := fx.reply(t, 400, "5")
	if !ok {
		t.Fatal("expected the marker to claim the quantity")
	}
	if got := fx.inventory.deltas; len(got) != 1 || got[0] != 5 {
		t.Fatalf("deltas = %v, want [5]", got)
	}
	if !strings.Contains(c.LastSent(), "15 unidades") {
		t.Fatalf("expected new level, got %q", c.LastSent())
	}
}

func TestEgressUsesNegativeDelta(t *testing.T) {
	fx := newFixture(t)
	fx.prompt(t, 400, "out")

	if _, ok := fx.reply(t, 400, "4"); !ok {
		t.Fatal("expected the marker to claim the quantity")
	}
	if got := fx.inventory.deltas; len(got) != 1 || got[0] != -4 {
		t.Fatalf("deltas = %v, want [-4]", got)
	}
}

func TestInvalidQuantityConsumesMarker(t *testing.T) {
	fx := newFixture(t)
	fx.prompt(t, 400, "in")

	c, ok := fx.reply(t, 400, "abc")
	if !ok {
		t.Fatal("expected the marker to claim the reply")
	}
	if !strings.Contains(c.LastSent(), "descartado") {
		t.Fatalf("expected discard message, got %q", c.LastSent())
	}
	if len(fx.inventory.deltas) != 0 {
		t.Fatalf("no adjustment expected, got %v", fx.inventory.deltas)
	}

	// Single shot: the bad reply consumed the expectation.
	if _, ok := fx.reply(t, 400, "5"); ok {
		t.Fatal("marker should not fire twice")
	}
}

func TestUnknownProductReprompts(t *testing.T) {
	fx := newFixture(t)
	c := telegramtest.NewText(400, "")
	if err := fx.flow.Begin(c, storage.Seller{Company: 1}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	c = telegramtest.NewText(400, "99")
	if handled, err := fx.conv.HandleText(c); !handled || err != nil {
		t.Fatalf("HandleText = (%v, %v)", handled, err)
	}
	if !strings.Contains(c.LastSent(), "No existe") {
		t.Fatalf("expected lookup-miss re-prompt, got %q", c.LastSent())
	}
	if s, ok := fx.conv.Sessions().Get(400); !ok || s.Step != 0 {
		t.Fatal("step must not advance on lookup miss")
	}
}
