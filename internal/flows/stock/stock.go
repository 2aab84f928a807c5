// Package stock implements stock ingress/egress. The product and direction
// are captured by a short flow; the final quantity is captured by a pending
// single-shot marker instead of a session step, so the chat is free for other
// commands while the quantity prompt is outstanding.
package stock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "pedidosbot/core/telegram"
	"pedidosbot/core/telegram/callbacks"
	tghelpers "pedidosbot/core/telegram/helpers"
	"pedidosbot/core/telegram/keyboard"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/pending"
	"pedidosbot/internal/storage"
)

// FlowName identifies stock-adjustment sessions.
const FlowName = "stock"

const (
	stepProductCode = iota
)

const cbDirection = "st_dir"

const (
	dirIn  = "in"
	dirOut = "out"
)

// Data accumulates one stock adjustment.
type Data struct {
	Company     int
	ProductCode int
	ProductName string
}

// Inventory is the product capability the flow depends on.
type Inventory interface {
	GetByCode(ctx context.Context, company, code int) (storage.Product, error)
	AdjustStock(ctx context.Context, company, code, delta int) (int, error)
}

// Flow is the stock-adjustment state machine.
type Flow struct {
	conv      *conversation.Dispatcher
	inventory Inventory
	listeners *pending.Listeners
}

// New constructs the flow with its collaborators.
func New(conv *conversation.Dispatcher, inventory Inventory, listeners *pending.Listeners) *Flow {
	return &Flow{conv: conv, inventory: inventory, listeners: listeners}
}

// Name implements conversation.Flow.
func (f *Flow) Name() string { return FlowName }

// NewData implements conversation.Flow.
func (f *Flow) NewData() any { return &Data{} }

// Steps implements conversation.Flow.
func (f *Flow) Steps() conversation.StepTable {
	return conversation.StepTable{
		stepProductCode: f.stepProductCode,
	}
}

// Begin starts a stock adjustment for the acting seller.
func (f *Flow) Begin(c tele.Context, seller storage.Seller) error {
	s, err := f.conv.Begin(c, FlowName)
	if err != nil {
		return err
	}
	d := s.Data.(*Data)
	d.Company = seller.Company
	f.conv.Sessions().Save(s)
	return tghelpers.SendText(c, "📊 Stock. Ingresá el código del producto.")
}

// Callbacks registers the flow's button handlers.
func (f *Flow) Callbacks(reg *tg.Registry) error {
	return reg.RegisterCallback(cbDirection, f.onDirection)
}

// Step 0: exact product code lookup, then a direction keyboard.
func (f *Flow) stepProductCode(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	code, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil {
		return tghelpers.SendText(c, "Ingresá un código numérico de producto.")
	}

	ctx := tghelpers.BuildContext(c)
	p, err := f.inventory.GetByCode(ctx, d.Company, code)
	if errors.Is(err, storage.ErrNotFound) {
		return tghelpers.SendText(c, "No existe un producto con ese código. Probá de nuevo.")
	}
	if err != nil {
		return tghelpers.SendText(c, "No pude buscar el producto, intentá de nuevo.")
	}
	d.ProductCode = p.Code
	d.ProductName = p.Name
	f.conv.Sessions().Save(s)

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "⬆️ Ingreso", Unique: cbDirection, Data: dirIn},
		{Text: "⬇️ Egreso", Unique: cbDirection, Data: dirOut},
	})
	return tghelpers.SendText(c, fmt.Sprintf("%s tiene %d unidades. ¿Ingreso o egreso?", p.Name, p.Stock),
		&tele.SendOptions{ReplyMarkup: markup})
}

// Callback: direction chosen. The session ends here and a single-shot marker
// takes over: the next text from the chat is the quantity, consumed exactly
// once even if another flow starts in between.
func (f *Flow) onDirection(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	dir := callbacks.CallbackPayload(c)
	if dir != dirIn && dir != dirOut {
		return nil
	}
	d := *s.Data.(*Data)
	f.conv.Finish(c, s, conversation.OutcomeOK)

	f.listeners.ExpectFromChat(s.ChatID, func(c tele.Context) error {
		qty, err := strconv.Atoi(strings.TrimSpace(c.Text()))
		if err != nil || qty <= 0 {
			return tghelpers.SendText(c, "Cantidad inválida, el ajuste de stock fue descartado. Empezá de nuevo con /stock.")
		}
		delta := qty
		if dir == dirOut {
			delta = -qty
		}
		ctx := tghelpers.BuildContext(c)
		level, err := f.inventory.AdjustStock(ctx, d.Company, d.ProductCode, delta)
		if err != nil {
			return tghelpers.SendText(c, "No pude ajustar el stock, empezá de nuevo con /stock.")
		}
		return tghelpers.SendText(c, fmt.Sprintf("✅ %s ahora tiene %d unidades.", d.ProductName, level))
	})

	verb := "ingresar"
	if dir == dirOut {
		verb = "egresar"
	}
	return tghelpers.SendText(c, fmt.Sprintf("¿Cuántas unidades de %s querés %s?", d.ProductName, verb))
}
