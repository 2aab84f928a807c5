// Package collections implements the payment-collection flow: find a debtor,
// list their unpaid orders, and mark a selection of them as paid.
package collections

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"pedidosbot/core/telegram/format"
	tghelpers "pedidosbot/core/telegram/helpers"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/storage"
)

// FlowName identifies collections sessions.
const FlowName = "collections"

// wildcard lists every customer carrying an unpaid balance.
const wildcard = "*"

const (
	stepCustomerSearch = iota
	stepCustomerPick
	stepOrderPick
)

// Data accumulates one collection round.
type Data struct {
	Company      int
	Candidates   []storage.Customer
	CustomerCode int
	CustomerName string
	Unpaid       []storage.Order
}

// Debtors is the customer lookup capability the flow depends on.
type Debtors interface {
	SearchByName(ctx context.Context, company int, q string) ([]storage.Customer, error)
	ListWithBalance(ctx context.Context, company int) ([]storage.Customer, error)
}

// Ledger reads and settles unpaid orders.
type Ledger interface {
	ListUnpaid(ctx context.Context, company, customerCode int) ([]storage.Order, error)
	MarkPaid(ctx context.Context, company int, ids []int64) (float64, error)
}

// Flow is the collections state machine.
type Flow struct {
	conv      *conversation.Dispatcher
	customers Debtors
	orders    Ledger
}

// New constructs the flow with its collaborators.
func New(conv *conversation.Dispatcher, customers Debtors, orders Ledger) *Flow {
	return &Flow{conv: conv, customers: customers, orders: orders}
}

// Name implements conversation.Flow.
func (f *Flow) Name() string { return FlowName }

// NewData implements conversation.Flow.
func (f *Flow) NewData() any { return &Data{} }

// Steps implements conversation.Flow.
func (f *Flow) Steps() conversation.StepTable {
	return conversation.StepTable{
		stepCustomerSearch: f.stepCustomerSearch,
		stepCustomerPick:   f.stepCustomerPick,
		stepOrderPick:      f.stepOrderPick,
	}
}

// Begin starts a collection round for the acting seller.
func (f *Flow) Begin(c tele.Context, seller storage.Seller) error {
	s, err := f.conv.Begin(c, FlowName)
	if err != nil {
		return err
	}
	d := s.Data.(*Data)
	d.Company = seller.Company
	f.conv.Sessions().Save(s)
	return tghelpers.SendText(c, "💰 Cobros. Ingresá el nombre del cliente, o * para ver todos los que deben.")
}

// Step 0: name search, or the wildcard for every debtor. Zero results ends
// the flow; otherwise the candidate set is stored and the flow advances.
func (f *Flow) stepCustomerSearch(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	ctx := tghelpers.BuildContext(c)
	text := strings.TrimSpace(c.Text())

	var (
		matches []storage.Customer
		err     error
	)
	if text == wildcard {
		matches, err = f.customers.ListWithBalance(ctx, d.Company)
	} else {
		matches, err = f.customers.SearchByName(ctx, d.Company, text)
	}
	if err != nil {
		return tghelpers.SendText(c, "No pude buscar clientes, intentá de nuevo.")
	}
	if len(matches) == 0 {
		f.conv.Finish(c, s, conversation.OutcomeOK)
		return tghelpers.SendText(c, "No encontré clientes con deuda para ese criterio.")
	}

	d.Candidates = matches
	f.conv.Sessions().Save(s)
	f.conv.Sessions().Advance(s.ChatID)

	var b strings.Builder
	b.WriteString("Clientes encontrados:\n")
	for _, m := range matches {
		fmt.Fprintf(&b, "• %d · %s — debe %s\n", m.Code, m.FullName(), format.Money(m.Balance))
	}
	b.WriteString("Ingresá el código del cliente a cobrar.")
	return tghelpers.SendText(c, b.String())
}

// Step 1: exact-code pick against the stored candidate set. An unknown code
// re-prompts without advancing.
func (f *Flow) stepCustomerPick(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	code, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil {
		return tghelpers.SendText(c, "Ingresá un código numérico de la lista.")
	}
	var picked *storage.Customer
	for i := range d.Candidates {
		if d.Candidates[i].Code == code {
			picked = &d.Candidates[i]
			break
		}
	}
	if picked == nil {
		return tghelpers.SendText(c, "Ese código no está en la lista. Probá de nuevo.")
	}

	ctx := tghelpers.BuildContext(c)
	unpaid, err := f.orders.ListUnpaid(ctx, d.Company, picked.Code)
	if err != nil {
		return tghelpers.SendText(c, "No pude cargar los pedidos, intentá de nuevo.")
	}
	if len(unpaid) == 0 {
		f.conv.Finish(c, s, conversation.OutcomeOK)
		return tghelpers.SendText(c, fmt.Sprintf("%s no tiene pedidos impagos. 👍", picked.FullName()))
	}

	d.CustomerCode = picked.Code
	d.CustomerName = picked.FullName()
	d.Unpaid = unpaid
	f.conv.Sessions().Save(s)
	f.conv.Sessions().Advance(s.ChatID)

	var b strings.Builder
	fmt.Fprintf(&b, "Pedidos impagos de %s:\n", picked.FullName())
	for _, o := range unpaid {
		fmt.Fprintf(&b, "• #%d — %s (%s)\n", o.ID, format.Money(o.Total), o.CreatedAt.Format("02/01/2006"))
	}
	b.WriteString("Ingresá los números de pedido a cobrar, separados por coma.")
	return tghelpers.SendText(c, b.String())
}

// Step 2: comma-separated order IDs. IDs outside the stored unpaid set are
// dropped; an empty valid selection re-prompts.
func (f *Flow) stepOrderPick(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)

	known := make(map[int64]bool, len(d.Unpaid))
	for _, o := range d.Unpaid {
		known[o.ID] = true
	}

	var ids []int64
	for _, part := range strings.Split(c.Text(), ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || !known[id] {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return tghelpers.SendText(c, "No reconocí ningún pedido de la lista. Ingresá los números separados por coma.")
	}

	ctx := tghelpers.BuildContext(c)
	total, err := f.orders.MarkPaid(ctx, d.Company, ids)
	if err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude registrar el cobro. La operación fue cancelada.")
	}

	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("✅ Cobrado %s de %s (%d pedidos).",
		format.Money(total), d.CustomerName, len(ids)))
}
