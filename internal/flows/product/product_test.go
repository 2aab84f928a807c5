package product_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"pedidosbot/core/logger"
	tg "pedidosbot/core/telegram"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/flows/product"
	"pedidosbot/internal/storage"
	"pedidosbot/internal/telegramtest"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeCatalog struct {
	byCode      map[int]storage.Product
	created     []storage.Product
	updated     map[string]string
	deactivated []int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		byCode: map[int]storage.Product{
			7: {Code: 7, Company: 1, Name: "Bidón 20L", Price: 10},
		},
		updated: make(map[string]string),
	}
}

func (f *fakeCatalog) GetByCode(_ context.Context, _, code int) (storage.Product, error) {
	p, ok := f.byCode[code]
	if !ok {
		return storage.Product{}, storage.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) Create(_ context.Context, p storage.Product) (storage.Product, error) {
	p.Code = 100 + len(f.created)
	f.created = append(f.created, p)
	return p, nil
}

func (f *fakeCatalog) UpdateField(_ context.Context, _, _ int, field, value string) error {
	f.updated[field] = value
	return nil
}

func (f *fakeCatalog) Deactivate(_ context.Context, _, code int) error {
	f.deactivated = append(f.deactivated, code)
	return nil
}

type fixture struct {
	conv    *conversation.Dispatcher
	reg     *tg.Registry
	flow    *product.Flow
	catalog *fakeCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conv := conversation.NewDispatcher(conversation.NewMemoryStore(), "/cancelar")
	catalog := newFakeCatalog()
	f := product.New(conv, catalog)
	if err := conv.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg := tg.NewRegistry()
	if err := f.Callbacks(reg); err != nil {
		t.Fatalf("callbacks: %v", err)
	}
	return &fixture{conv: conv, reg: reg, flow: f, catalog: catalog}
}

func (fx *fixture) begin(t *testing.T, chatID int64) {
	t.Helper()
	c := telegramtest.NewText(chatID, "")
	if err := fx.flow.Begin(c, storage.Seller{Company: 1, Code: 9}); err != nil {
		t.Fatalf("begin: %v", err)
	}
}

func (fx *fixture) callback(t *testing.T, chatID int64, key, payload string) *telegramtest.Ctx {
	t.Helper()
	h, ok := fx.reg.GetCallback(key)
	if !ok {
		t.Fatalf("callback %s not registered", key)
	}
	c := telegramtest.NewCallback(chatID, key, payload)
	if err := h(c); err != nil {
		t.Fatalf("callback %s: %v", key, err)
	}
	return c
}

func (fx *fixture) text(t *testing.T, chatID int64, text string) *telegramtest.Ctx {
	t.Helper()
	c := telegramtest.NewText(chatID, text)
	handled, err := fx.conv.HandleText(c)
	if !handled || err != nil {
		t.Fatalf("HandleText(%q) = (%v, %v), want handled", text, handled, err)
	}
	return c
}

func TestCreateProduct(t *testing.T) {
	fx := newFixture(t)
	fx.begin(t, 500)
	fx.callback(t, 500, "pr_mode", "create")

	fx.text(t, 500, "Soda 1.5L")
	fx.text(t, 500, "850,50")
	c := fx.text(t, 500, "24")

	if len(fx.catalog.created) != 1 {
		t.Fatalf("created = %d, want 1", len(fx.catalog.created))
	}
	got := fx.catalog.created[0]
	if got.Name != "Soda 1.5L" || got.Price != 850.50 || got.Stock != 24 {
		t.Fatalf("created product = %+v", got)
	}
	if !strings.Contains(c.LastSent(), "Producto creado") {
		t.Fatalf("expected confirmation, got %q", c.LastSent())
	}
	if _, ok := fx.conv.Sessions().Get(500); ok {
		t.Fatal("session should end after creation")
	}
}

func TestCreateProductValidation(t *testing.T) {
	fx := newFixture(t)
	fx.begin(t, 500)
	fx.callback(t, 500, "pr_mode", "create")
	fx.text(t, 500, "Soda 1.5L")

	c := fx.text(t, 500, "-3")
	if !strings.Contains(c.LastSent(), "Precio inválido") {
		t.Fatalf("expected price validation, got %q", c.LastSent())
	}
	fx.text(t, 500, "850")

	c = fx.text(t, 500, "-1")
	if !strings.Contains(c.LastSent(), "Stock inválido") {
		t.Fatalf("expected stock validation, got %q", c.LastSent())
	}
	if len(fx.catalog.created) != 0 {
		t.Fatalf("nothing should be created yet, got %v", fx.catalog.created)
	}
}

func TestEditProductPrice(t *testing.T) {
	fx := newFixture(t)
	fx.begin(t, 500)
	fx.callback(t, 500, "pr_mode", "edit")
	fx.text(t, 500, "7")
	fx.callback(t, 500, "pr_field", "price")

	c := fx.text(t, 500, "12,50")
	if fx.catalog.updated["price"] != "12.50" {
		t.Fatalf("updated = %v, want normalized price", fx.catalog.updated)
	}
	if !strings.Contains(c.LastSent(), "actualizado") {
		t.Fatalf("expected confirmation, got %q", c.LastSent())
	}
}

func TestEditRejectsInvalidValue(t *testing.T) {
	fx := newFixture(t)
	fx.begin(t, 500)
	fx.callback(t, 500, "pr_mode", "edit")
	fx.text(t, 500, "7")
	fx.callback(t, 500, "pr_field", "stock")

	c := fx.text(t, 500, "muchos")
	if !strings.Contains(c.LastSent(), "Stock inválido") {
		t.Fatalf("expected validation, got %q", c.LastSent())
	}
	if len(fx.catalog.updated) != 0 {
		t.Fatalf("no update expected, got %v", fx.catalog.updated)
	}
	if _, ok := fx.conv.Sessions().Get(500); !ok {
		t.Fatal("session must survive validation errors")
	}
}

func TestDeleteDeactivatesProduct(t *testing.T) {
	fx := newFixture(t)
	fx.begin(t, 500)
	fx.callback(t, 500, "pr_mode", "delete")
	fx.text(t, 500, "7")

	c := fx.callback(t, 500, "pr_del", "yes")
	if len(fx.catalog.deactivated) != 1 || fx.catalog.deactivated[0] != 7 {
		t.Fatalf("deactivated = %v, want [7]", fx.catalog.deactivated)
	}
	if !strings.Contains(c.LastSent(), "eliminado") {
		t.Fatalf("expected confirmation, got %q", c.LastSent())
	}
}

func TestDeleteDeclined(t *testing.T) {
	fx := newFixture(t)
	fx.begin(t, 500)
	fx.callback(t, 500, "pr_mode", "delete")
	fx.text(t, 500, "7")

	fx.callback(t, 500, "pr_del", "no")
	if len(fx.catalog.deactivated) != 0 {
		t.Fatalf("deactivation persisted despite decline: %v", fx.catalog.deactivated)
	}
	if _, ok := fx.conv.Sessions().Get(500); ok {
		t.Fatal("session should end on decline")
	}
}

func TestUnknownProductCodeReprompts(t *testing.T) {
	fx := newFixture(t)
	fx.begin(t, 500)
	fx.callback(t, 500, "pr_mode", "edit")

	c := fx.text(t, 500, "99")
	if !strings.Contains(c.LastSent(), "No existe") {
		t.Fatalf("expected lookup-miss re-prompt, got %q", c.LastSent())
	}
	s, ok := fx.conv.Sessions().Get(500)
	if !ok || s.Data.(*product.Data).ProductCode != 0 {
		t.Fatal("lookup miss must leave the session untouched")
	}
}
