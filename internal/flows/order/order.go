// Package order implements the order-entry flow: customer search, product
// selection, quantities, and the final transactional commit.
package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "pedidosbot/core/telegram"
	"pedidosbot/core/telegram/callbacks"
	"pedidosbot/core/telegram/format"
	tghelpers "pedidosbot/core/telegram/helpers"
	"pedidosbot/core/telegram/keyboard"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/storage"
)

// FlowName identifies order-entry sessions.
const FlowName = "order-entry"

// Step indices. Product selection and the summary are reached through
// callbacks; their table entries only re-prompt stray text.
const (
	stepCustomerSearch = iota
	stepProductSelect
	stepQuantity
	stepSummary
)

const (
	cbCustomer = "order_cust"
	cbPage     = "order_page"
	cbProduct  = "order_prod"
	cbQty      = "order_qty"
	cbDone     = "order_done"
	cbMore     = "order_more"
	cbCommit   = "order_commit"
	cbCancel   = "order_cancel"
)

// Data accumulates one order in progress.
type Data struct {
	Company      int
	SellerCode   int
	CustomerCode int
	CustomerName string
	Pending      *storage.Product
	Items        []storage.OrderItem
	Total        float64
	Page         int
}

// CustomerDirectory is the customer lookup capability the flow depends on.
type CustomerDirectory interface {
	GetByCode(ctx context.Context, company, code int) (storage.Customer, error)
	SearchByName(ctx context.Context, company int, q string) ([]storage.Customer, error)
}

// Catalog is the product lookup capability the flow depends on.
type Catalog interface {
	GetByCode(ctx context.Context, company, code int) (storage.Product, error)
	ListActive(ctx context.Context, company, offset, limit int) ([]storage.Product, error)
	CountActive(ctx context.Context, company int) (int, error)
}

// OrderWriter persists a finished order atomically.
type OrderWriter interface {
	Create(ctx context.Context, o storage.Order, items []storage.OrderItem) (storage.Order, error)
}

// Flow is the order-entry state machine.
type Flow struct {
	conv      *conversation.Dispatcher
	customers CustomerDirectory
	catalog   Catalog
	orders    OrderWriter
	pageSize  int
	perRow    int
}

// New constructs the flow with its collaborators.
func New(conv *conversation.Dispatcher, customers CustomerDirectory, catalog Catalog, orders OrderWriter, pageSize, perRow int) *Flow {
	return &Flow{
		conv:      conv,
		customers: customers,
		catalog:   catalog,
		orders:    orders,
		pageSize:  pageSize,
		perRow:    perRow,
	}
}

// Name implements conversation.Flow.
func (f *Flow) Name() string { return FlowName }

// NewData implements conversation.Flow.
func (f *Flow) NewData() any { return &Data{} }

// Steps implements conversation.Flow.
func (f *Flow) Steps() conversation.StepTable {
	return conversation.StepTable{
		stepCustomerSearch: f.stepCustomerSearch,
		stepProductSelect:  f.stepProductSelect,
		stepQuantity:       f.stepQuantity,
		stepSummary:        f.stepSummary,
	}
}

// Begin starts a fresh order for the acting seller and prompts for the
// customer.
func (f *Flow) Begin(c tele.Context, seller storage.Seller) error {
	s, err := f.conv.Begin(c, FlowName)
	if err != nil {
		return err
	}
	d := s.Data.(*Data)
	d.Company = seller.Company
	d.SellerCode = seller.Code
	f.conv.Sessions().Save(s)
	return tghelpers.SendText(c, "🧾 Nuevo pedido. Ingresá el código o el nombre del cliente. Escribí /cancelar para salir.")
}

// Callbacks registers the flow's button handlers.
func (f *Flow) Callbacks(reg *tg.Registry) error {
	for key, h := range map[string]tele.HandlerFunc{
		cbCustomer: f.onCustomerPicked,
		cbPage:     f.onPage,
		cbProduct:  f.onProductPicked,
		cbQty:      f.onQuantityButton,
		cbDone:     f.onDone,
		cbMore:     f.onMore,
		cbCommit:   f.onCommit,
		cbCancel:   f.onCancel,
	} {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

// Step 0: free text customer search. Numeric input is an exact code lookup;
// anything else is a fuzzy name/surname match.
func (f *Flow) stepCustomerSearch(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	ctx := tghelpers.BuildContext(c)
	text := strings.TrimSpace(c.Text())

	if code, err := strconv.Atoi(text); err == nil {
		cust, err := f.customers.GetByCode(ctx, d.Company, code)
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.SendText(c, "No existe un cliente con ese código. Probá de nuevo.")
		}
		if err != nil {
			return tghelpers.SendText(c, "No pude buscar el cliente, intentá de nuevo.")
		}
		return f.selectCustomer(c, s, cust)
	}

	matches, err := f.customers.SearchByName(ctx, d.Company, text)
	if err != nil {
		return tghelpers.SendText(c, "No pude buscar el cliente, intentá de nuevo.")
	}
	switch len(matches) {
	case 0:
		return tghelpers.SendText(c, "No encontré clientes con ese nombre. Probá con otro texto.")
	case 1:
		return f.selectCustomer(c, s, matches[0])
	default:
		btns := make([]keyboard.InlineBtn, 0, len(matches))
		for _, m := range matches {
			btns = append(btns, keyboard.InlineBtn{
				Text:   fmt.Sprintf("%d · %s", m.Code, m.FullName()),
				Unique: cbCustomer,
				Data:   strconv.Itoa(m.Code),
			})
		}
		return tghelpers.SendText(c, "Encontré varios clientes, elegí uno:", &tele.SendOptions{
			ReplyMarkup: keyboard.InlineButtons(btns),
		})
	}
}

func (f *Flow) selectCustomer(c tele.Context, s *conversation.Session, cust storage.Customer) error {
	d := s.Data.(*Data)
	d.CustomerCode = cust.Code
	d.CustomerName = cust.FullName()
	s.Step = stepProductSelect
	f.conv.Sessions().Save(s)
	return f.sendProductGrid(c, s)
}

// Callback: customer chosen from the fuzzy-match keyboard.
func (f *Flow) onCustomerPicked(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	code, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	d := s.Data.(*Data)
	ctx := tghelpers.BuildContext(c)
	cust, err := f.customers.GetByCode(ctx, d.Company, code)
	if err != nil {
		return tghelpers.SendText(c, "No pude cargar ese cliente, buscá de nuevo.")
	}
	return f.selectCustomer(c, s, cust)
}

func (f *Flow) sendProductGrid(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	ctx := tghelpers.BuildContext(c)

	total, err := f.catalog.CountActive(ctx, d.Company)
	if err != nil {
		return tghelpers.SendText(c, "No pude cargar el catálogo, intentá de nuevo.")
	}
	if total == 0 {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No hay productos activos cargados.")
	}
	pages := (total + f.pageSize - 1) / f.pageSize
	if d.Page >= pages {
		d.Page = pages - 1
	}
	products, err := f.catalog.ListActive(ctx, d.Company, d.Page*f.pageSize, f.pageSize)
	if err != nil {
		return tghelpers.SendText(c, "No pude cargar el catálogo, intentá de nuevo.")
	}

	btns := make([]keyboard.InlineBtn, 0, len(products))
	for _, p := range products {
		btns = append(btns, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s (%s)", p.Name, format.Money(p.Price)),
			Unique: cbProduct,
			Data:   strconv.Itoa(p.Code),
		})
	}
	rows := chunk(btns, f.perRow)
	var nav []keyboard.InlineBtn
	if d.Page > 0 {
		nav = append(nav, keyboard.InlineBtn{Text: "⬅️", Unique: cbPage, Data: strconv.Itoa(d.Page - 1)})
	}
	if d.Page < pages-1 {
		nav = append(nav, keyboard.InlineBtn{Text: "➡️", Unique: cbPage, Data: strconv.Itoa(d.Page + 1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: "✅ Terminar pedido", Unique: cbDone, Data: "done"}})

	text := fmt.Sprintf("Cliente: %s\nElegí productos (página %d/%d):", d.CustomerName, d.Page+1, pages)
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: keyboard.InlineButtonsRows(rows...)})
}

func chunk(btns []keyboard.InlineBtn, n int) [][]keyboard.InlineBtn {
	if n <= 1 {
		out := make([][]keyboard.InlineBtn, 0, len(btns))
		for _, b := range btns {
			out = append(out, []keyboard.InlineBtn{b})
		}
		return out
	}
	var rows [][]keyboard.InlineBtn
	for i := 0; i < len(btns); i += n {
		end := i + n
		if end > len(btns) {
			end = len(btns)
		}
		rows = append(rows, btns[i:end])
	}
	return rows
}

// Text at the product-selection step only reminds about the buttons.
func (f *Flow) stepProductSelect(c tele.Context, _ *conversation.Session) error {
	return tghelpers.SendText(c, "Elegí un producto con los botones, o tocá ✅ Terminar pedido.")
}

func (f *Flow) onPage(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	page, err := callbacks.PayloadInt(c)
	if err != nil || page < 0 {
		return nil
	}
	d := s.Data.(*Data)
	d.Page = page
	f.conv.Sessions().Save(s)
	return f.sendProductGrid(c, s)
}

// Callback: product chosen; jump to the quantity step.
func (f *Flow) onProductPicked(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	code, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	d := s.Data.(*Data)
	ctx := tghelpers.BuildContext(c)
	p, err := f.catalog.GetByCode(ctx, d.Company, code)
	if err != nil {
		return tghelpers.SendText(c, "No pude cargar ese producto, elegí otro.")
	}
	d.Pending = &p
	s.Step = stepQuantity
	f.conv.Sessions().Save(s)

	qty := make([]keyboard.InlineBtn, 0, 6)
	for i := 1; i <= 6; i++ {
		qty = append(qty, keyboard.InlineBtn{Text: strconv.Itoa(i), Unique: cbQty, Data: strconv.Itoa(i)})
	}
	text := fmt.Sprintf("¿Cuántas unidades de %s? Tocá un número o escribí la cantidad.", p.Name)
	return tghelpers.SendText(c, text, &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtonsNPerRow(qty, 3),
	})
}

// Step: free-text quantity entry. Only positive integers advance.
func (f *Flow) stepQuantity(c tele.Context, s *conversation.Session) error {
	qty, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil || qty <= 0 {
		return tghelpers.SendText(c, "Cantidad inválida. Ingresá un número entero mayor a cero.")
	}
	return f.addItem(c, s, qty)
}

func (f *Flow) onQuantityButton(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	if s.Step != stepQuantity {
		return nil
	}
	qty, err := callbacks.PayloadInt(c)
	if err != nil || qty <= 0 {
		return nil
	}
	return f.addItem(c, s, qty)
}

func (f *Flow) addItem(c tele.Context, s *conversation.Session, qty int) error {
	d := s.Data.(*Data)
	if d.Pending == nil {
		// Stale quantity press after the item was already taken.
		return nil
	}
	p := *d.Pending
	line := storage.OrderItem{
		ProductCode: p.Code,
		Description: p.Name,
		UnitPrice:   p.Price,
		Quantity:    qty,
		LineTotal:   float64(qty) * p.Price,
	}
	d.Items = append(d.Items, line)
	d.Total += line.LineTotal
	d.Pending = nil
	s.Step = stepSummary
	f.conv.Sessions().Save(s)
	return f.sendSummary(c, s)
}

// The summary goes out as Markdown, so names coming from the database are
// escaped before they can be taken for formatting markup.
func (f *Flow) sendSummary(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	var b strings.Builder
	fmt.Fprintf(&b, "Pedido de %s:\n", mdSafe(d.CustomerName))
	for _, it := range d.Items {
		fmt.Fprintf(&b, "• %d x %s — %s\n", it.Quantity, mdSafe(it.Description), format.Money(it.LineTotal))
	}
	fmt.Fprintf(&b, "*Total: %s*", format.Money(d.Total))

	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "➕ Agregar más", Unique: cbMore, Data: "more"}},
		[]keyboard.InlineBtn{{Text: "💾 Confirmar pedido", Unique: cbCommit, Data: "commit"}},
		[]keyboard.InlineBtn{{Text: "❌ Cancelar", Unique: cbCancel, Data: "cancel"}},
	)
	return tghelpers.SendMD(c, b.String(), markup)
}

func mdSafe(s string) string {
	out, err := format.EscapeMarkdown(s, format.MarkdownV1)
	if err != nil {
		return s
	}
	return out
}

// Text at the summary step re-shows the summary.
func (f *Flow) stepSummary(c tele.Context, s *conversation.Session) error {
	return f.sendSummary(c, s)
}

func (f *Flow) onDone(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	d := s.Data.(*Data)
	if len(d.Items) == 0 {
		return tghelpers.SendText(c, "Todavía no agregaste productos al pedido.")
	}
	s.Step = stepSummary
	f.conv.Sessions().Save(s)
	return f.sendSummary(c, s)
}

func (f *Flow) onMore(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	s.Step = stepProductSelect
	f.conv.Sessions().Save(s)
	return f.sendProductGrid(c, s)
}

// Callback: finalize. Header and items are committed atomically; on failure
// the flow ends so the chat is immediately free again.
func (f *Flow) onCommit(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	d := s.Data.(*Data)
	if len(d.Items) == 0 {
		return tghelpers.SendText(c, "Todavía no agregaste productos al pedido.")
	}
	ctx := tghelpers.BuildContext(c)
	o, err := f.orders.Create(ctx, storage.Order{
		Company:      d.Company,
		CustomerCode: d.CustomerCode,
		SellerCode:   d.SellerCode,
		Total:        d.Total,
	}, d.Items)
	if err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude guardar el pedido. La operación fue cancelada, volvé a intentarlo.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendMD(c, fmt.Sprintf("✅ Pedido #%d guardado para %s. *Total: %s*",
		o.ID, mdSafe(d.CustomerName), format.Money(d.Total)))
}

func (f *Flow) onCancel(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	f.conv.Finish(c, s, conversation.OutcomeCancelled)
	return tghelpers.SendText(c, "Operación cancelada.")
}
