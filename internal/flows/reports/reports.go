// Package reports implements date-range sales reporting: a two-step range
// capture followed by an aggregate query, with shortcut buttons for the
// common ranges.
package reports

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	tg "pedidosbot/core/telegram"
	"pedidosbot/core/telegram/callbacks"
	"pedidosbot/core/telegram/format"
	tghelpers "pedidosbot/core/telegram/helpers"
	"pedidosbot/core/telegram/keyboard"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/storage"
)

// FlowName identifies reporting sessions.
const FlowName = "reports"

const (
	stepFrom = iota
	stepTo
)

const cbRange = "rp_range"

const (
	rangeToday = "today"
	rangeWeek  = "week"
	rangeMonth = "month"
)

// Data accumulates one report request.
type Data struct {
	Company int
	From    time.Time
}

// SalesLedger is the aggregate-query capability the flow depends on.
type SalesLedger interface {
	TotalsBetween(ctx context.Context, company int, from, to time.Time) (int, float64, error)
}

// Flow is the reporting state machine.
type Flow struct {
	conv   *conversation.Dispatcher
	orders SalesLedger
}

// New constructs the flow with its collaborators.
func New(conv *conversation.Dispatcher, orders SalesLedger) *Flow {
	return &Flow{conv: conv, orders: orders}
}

// Name implements conversation.Flow.
func (f *Flow) Name() string { return FlowName }

// NewData implements conversation.Flow.
func (f *Flow) NewData() any { return &Data{} }

// Steps implements conversation.Flow.
func (f *Flow) Steps() conversation.StepTable {
	return conversation.StepTable{
		stepFrom: f.stepFrom,
		stepTo:   f.stepTo,
	}
}

// Begin starts a report request for the acting seller.
func (f *Flow) Begin(c tele.Context, seller storage.Seller) error {
	s, err := f.conv.Begin(c, FlowName)
	if err != nil {
		return err
	}
	d := s.Data.(*Data)
	d.Company = seller.Company
	f.conv.Sessions().Save(s)

	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Hoy", Unique: cbRange, Data: rangeToday},
		{Text: "Semana", Unique: cbRange, Data: rangeWeek},
		{Text: "Mes", Unique: cbRange, Data: rangeMonth},
	})
	return tghelpers.SendText(c, "📈 Reporte de ventas. Elegí un rango, o ingresá la fecha desde (ej: 15/08/2026).",
		&tele.SendOptions{ReplyMarkup: markup})
}

// Callbacks registers the flow's button handlers.
func (f *Flow) Callbacks(reg *tg.Registry) error {
	return reg.RegisterCallback(cbRange, f.onRange)
}

// Step 0: free-text "from" date in any of the accepted layouts.
func (f *Flow) stepFrom(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	from, ok := tghelpers.ParseFlexibleDate(c.Text())
	if !ok {
		return tghelpers.SendText(c, "No entendí la fecha. Usá el formato 15/08/2026.")
	}
	d.From = from
	f.conv.Sessions().Save(s)
	f.conv.Sessions().Advance(s.ChatID)
	return tghelpers.SendText(c, "Fecha hasta (inclusive):")
}

// Step 1: "to" date; the range is end-exclusive internally, so one day is
// added to make the user-entered bound inclusive.
func (f *Flow) stepTo(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	to, ok := tghelpers.ParseFlexibleDate(c.Text())
	if !ok {
		return tghelpers.SendText(c, "No entendí la fecha. Usá el formato 15/08/2026.")
	}
	if to.Before(d.From) {
		return tghelpers.SendText(c, "La fecha hasta no puede ser anterior a la fecha desde.")
	}
	return f.report(c, s, d.From, to.AddDate(0, 0, 1))
}

// Callback: shortcut range.
func (f *Flow) onRange(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	var from time.Time
	switch callbacks.CallbackPayload(c) {
	case rangeToday:
		from = today
	case rangeWeek:
		sinceMonday := (int(today.Weekday()) + 6) % 7
		from = today.AddDate(0, 0, -sinceMonday)
	case rangeMonth:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)
	default:
		return nil
	}
	return f.report(c, s, from, today.AddDate(0, 0, 1))
}

func (f *Flow) report(c tele.Context, s *conversation.Session, from, to time.Time) error {
	d := s.Data.(*Data)
	ctx := tghelpers.BuildContext(c)
	count, total, err := f.orders.TotalsBetween(ctx, d.Company, from, to)
	if err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude generar el reporte. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("📈 Del %s al %s: %d pedidos por %s.",
		from.Format("02/01/2006"), to.AddDate(0, 0, -1).Format("02/01/2006"), count, format.Money(total)))
}
