package order_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"pedidosbot/core/logger"
	tg "pedidosbot/core/telegram"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/flows/order"
	"pedidosbot/internal/storage"
	"pedidosbot/internal/telegramtest"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(nil); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeCustomers struct {
	byCode map[int]storage.Customer
}

func (f *fakeCustomers) GetByCode(_ context.Context, _, code int) (storage.Customer, error) {
	c, ok := f.byCode[code]
	if !ok {
		return storage.Customer{}, storage.ErrNotFound
	}
	return c, nil
}

func (f *fakeCustomers) SearchByName(_ context.Context, _ int, q string) ([]storage.Customer, error) {
	var out []storage.Customer
	for _, c := range f.byCode {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(q)) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeCatalog struct {
	products []storage.Product
}

func (f *fakeCatalog) GetByCode(_ context.Context, _, code int) (storage.Product, error) {
	for _, p := range f.products {
		if p.Code == code {
			return p, nil
		}
	}
	return storage.Product{}, storage.ErrNotFound
}

func (f *fakeCatalog) ListActive(_ context.Context, _, offset, limit int) ([]storage.Product, error) {
	if offset >= len(f.products) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.products) {
		end = len(f.products)
	}
	return f.products[offset:end], nil
}

func (f *fakeCatalog) CountActive(_ context.Context, _ int) (int, error) {
	return len(f.products), nil
}

type fakeOrders struct {
	created []storage.Order
	items   [][]storage.OrderItem
}

func (f *fakeOrders) Create(_ context.Context, o storage.Order, items []storage.OrderItem) (storage.Order, error) {
	o.ID = int64(len(f.created) + 1)
	f.created = append(f.created, o)
	f.items = append(f.items, items)
	return o, nil
}

type fixture struct {
	conv   *conversation.Dispatcher
	reg    *tg.Registry
	flow   *order.Flow
	orders *fakeOrders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conv := conversation.NewDispatcher(conversation.NewMemoryStore(), "/cancelar")
	customers := &fakeCustomers{byCode: map[int]storage.Customer{
		42: {Code: 42, Company: 1, Name: "Juana", Surname: "Díaz"},
	}}
	catalog := &fakeCatalog{products: []storage.Product{
		{Code: 7, Company: 1, Name: "Bidón 20L", Price: 10, Stock: 50, Active: true},
		{Code: 8, Company: 1, Name: "Soda", Price: 4, Stock: 30, Active: true},
	}}
	orders := &fakeOrders{}

	f := order.New(conv, customers, catalog, orders, 8, 3)
	if err := conv.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg := tg.NewRegistry()
	if err := f.Callbacks(reg); err != nil {
		t.Fatalf("callbacks: %v", err)
	}
	return &fixture{conv: conv, reg: reg, flow: f, orders: orders}
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

func (fx *fixture) data(t *testing.T, chatID int64) (*conversation.Session, *order.Data) {
	t.Helper()
	s, ok := fx.conv.Sessions().Get(chatID)
	if !ok {
		t.Fatal("no session")
	}
	return s, s.Data.(*order.Data)
}

func begin(t *testing.T, fx *fixture, chatID int64) {
	t.Helper()
	c := telegramtest.NewText(chatID, "")
	seller := storage.Seller{Company: 1, Code: 9, Name: "Vendedor"}
	if err := fx.flow.Begin(c, seller); err != nil {
		t.Fatalf("begin: %v", err)
	}
}

func TestOrderHappyPath(t *testing.T) {
	fx := newFixture(t)
	begin(t, fx, 100)

	// Numeric input resolves the customer by exact code and shows the grid.
	c := fx.text(t, 100, "42")
	if !strings.Contains(c.LastSent(), "Juana") {
		t.Fatalf("grid should mention the customer, got %q", c.LastSent())
	}
	s, d := fx.data(t, 100)
	if d.CustomerCode != 42 || s.Step != 1 {
		t.Fatalf("customer = %d step = %d, want 42 at step 1", d.CustomerCode, s.Step)
	}

	fx.callback(t, 100, "order_prod", "7")
	s, d = fx.data(t, 100)
	if s.Step != 2 || d.Pending == nil || d.Pending.Code != 7 {
		t.Fatalf("after product pick step = %d pending = %+v", s.Step, d.Pending)
	}

	fx.text(t, 100, "3")
	s, d = fx.data(t, 100)
	if len(d.Items) != 1 || d.Items[0].Quantity != 3 || d.Items[0].LineTotal != 30 {
		t.Fatalf("items = %+v", d.Items)
	}
	if d.Total != 30 {
		t.Fatalf("total = %v, want 30", d.Total)
	}
	if s.Step != 3 {
		t.Fatalf("step = %d, want summary", s.Step)
	}

	c = fx.callback(t, 100, "order_commit", "commit")
	if len(fx.orders.created) != 1 {
		t.Fatalf("orders persisted = %d, want 1", len(fx.orders.created))
	}
	got := fx.orders.created[0]
	if got.Total != 30 || got.CustomerCode != 42 || got.SellerCode != 9 {
		t.Fatalf("persisted order = %+v", got)
	}
	if fx.orders.items[0][0].LineTotal != 30 {
		t.Fatalf("persisted items = %+v", fx.orders.items[0])
	}
	if _, ok := fx.conv.Sessions().Get(100); ok {
		t.Fatal("session should end after commit")
	}
	if !strings.Contains(c.LastSent(), "guardado") {
		t.Fatalf("expected confirmation, got %q", c.LastSent())
	}
}

func TestTotalAccumulatesAcrossItems(t *testing.T) {
	fx := newFixture(t)
	begin(t, fx, 100)
	fx.text(t, 100, "42")

	fx.callback(t, 100, "order_prod", "7")
	fx.text(t, 100, "3") // 3 x 10 = 30
	fx.callback(t, 100, "order_more", "more")
	fx.callback(t, 100, "order_prod", "8")
	fx.text(t, 100, "5") // 5 x 4 = 20

	_, d := fx.data(t, 100)
	if d.Total != 50 {
		t.Fatalf("total = %v, want 50", d.Total)
	}
	if len(d.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(d.Items))
	}
}

func TestInvalidQuantitiesDoNotAdvance(t *testing.T) {
	fx := newFixture(t)
	begin(t, fx, 100)
	fx.text(t, 100, "42")
	fx.callback(t, 100, "order_prod", "7")

	for _, bad := range []string{"-1", "0", "abc"} {
		c := fx.text(t, 100, bad)
		if !strings.Contains(c.LastSent(), "inválida") {
			t.Fatalf("quantity %q: expected re-prompt, got %q", bad, c.LastSent())
		}
		s, d := fx.data(t, 100)
		if s.Step != 2 || len(d.Items) != 0 {
			t.Fatalf("quantity %q advanced the flow: step %d items %d", bad, s.Step, len(d.Items))
		}
	}

	fx.text(t, 100, "2")
	_, d := fx.data(t, 100)
	if len(d.Items) != 1 || d.Total != 20 {
		t.Fatalf("valid quantity after rejections: items %d total %v", len(d.Items), d.Total)
	}
}

func TestUnknownCustomerReprompts(t *testing.T) {
	fx := newFixture(t)
	begin(t, fx, 100)

	c := fx.text(t, 100, "999")
	if !strings.Contains(c.LastSent(), "No existe") {
		t.Fatalf("expected lookup-miss re-prompt, got %q", c.LastSent())
	}
	s, _ := fx.data(t, 100)
	if s.Step != 0 {
		t.Fatalf("step = %d after miss, want 0", s.Step)
	}
}

func TestStrayCallbackFromOtherFlowIsIgnored(t *testing.T) {
	fx := newFixture(t)
	other := conversationFlowStub{}
	if err := fx.conv.Register(other); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := fx.conv.Begin(telegramtest.NewText(100, ""), "other"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	// A delayed order button press must not touch the other flow's session.
	fx.callback(t, 100, "order_prod", "7")
	s, ok := fx.conv.Sessions().Get(100)
	if !ok || s.Flow != "other" || s.Step != 0 {
		t.Fatalf("session = %+v, want untouched other flow", s)
	}
}

func TestFinalizeWithEmptyCartKeepsSession(t *testing.T) {
	fx := newFixture(t)
	begin(t, fx, 200)
	fx.text(t, 200, "42")
	c := fx.callback(t, 200, "order_done", "done")
	if !strings.Contains(c.LastSent(), "no agregaste") {
		t.Fatalf("expected empty-cart message, got %q", c.LastSent())
	}
	if _, ok := fx.conv.Sessions().Get(200); !ok {
		t.Fatal("empty-cart finalize must keep the session")
	}
}

// conversationFlowStub occupies a chat with a foreign flow name.
type conversationFlowStub struct{}

func (conversationFlowStub) Name() string                  { return "other" }
func (conversationFlowStub) NewData() any                  { return &struct{}{} }
func (conversationFlowStub) Steps() conversation.StepTable { return conversation.StepTable{} }

func TestSummaryEscapesMarkupInNames(t *testing.T) {
	conv := conversation.NewDispatcher(conversation.NewMemoryStore(), "/cancelar")
	customers := &fakeCustomers{byCode: map[int]storage.Customer{
		42: {Code: 42, Company: 1, Name: "Juana*Sur", Surname: "Díaz"},
	}}
	catalog := &fakeCatalog{products: []storage.Product{
		{Code: 7, Company: 1, Name: "Agua_Plus 2L", Price: 10, Stock: 50, Active: true},
	}}
	f := order.New(conv, customers, catalog, &fakeOrders{}, 8, 3)
	if err := conv.Register(f); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg := tg.NewRegistry()
	if err := f.Callbacks(reg); err != nil {
		t.Fatalf("callbacks: %v", err)
	}
	fx := &fixture{conv: conv, reg: reg, flow: f, orders: &fakeOrders{}}
	begin(t, fx, 100)

	fx.text(t, 100, "42")
	fx.callback(t, 100, "order_prod", "7")
	c := fx.text(t, 100, "2")

	// The summary is sent as Markdown; names from the database must arrive
	// with their markup characters escaped.
	got := c.LastSent()
	if !strings.Contains(got, `Juana\*Sur`) {
		t.Fatalf("customer name not escaped: %q", got)
	}
	if !strings.Contains(got, `Agua\_Plus 2L`) {
		t.Fatalf("product name not escaped: %q", got)
	}
	if !strings.Contains(got, "*Total: $20.00*") {
		t.Fatalf("total line = %q", got)
	}
}
