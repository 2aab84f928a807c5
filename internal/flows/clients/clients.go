// Package clients implements customer management: creation, field edits,
// deletion, returnable-container deposits, and delivery-zone assignment.
package clients

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	tele "gopkg.in/telebot.v4"

	tg "pedidosbot/core/telegram"
	"pedidosbot/core/telegram/callbacks"
	tghelpers "pedidosbot/core/telegram/helpers"
	"pedidosbot/core/telegram/keyboard"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/storage"
)

// FlowName identifies client-management sessions.
const FlowName = "clients"

// Modes select which branch of the flow runs after the opening menu.
const (
	modeCreate   = "create"
	modeEdit     = "edit"
	modeDelete   = "delete"
	modeDeposits = "deposits"
	modeZone     = "zone"
)

const (
	stepMenu = iota
	stepName
	stepSurname
	stepPhone
	stepAddress
	stepFind
	stepNewValue
	stepDelta
)

const (
	cbMode     = "cl_mode"
	cbCustomer = "cl_cust"
	cbField    = "cl_field"
	cbConfirm  = "cl_del"
	cbZone     = "cl_zone"
)

// Draft holds the fields gathered by the creation branch.
type Draft struct {
	Name    string `validate:"required,min=2"`
	Surname string `validate:"omitempty,min=2"`
	Phone   string `validate:"omitempty,numeric,min=6"`
	Address string `validate:"required,min=4"`
}

// Data accumulates one client-management session.
type Data struct {
	Company      int
	Mode         string
	Draft        Draft
	CustomerCode int
	CustomerName string
	Field        string
}

// Registry is the customer capability the flow depends on.
type Registry interface {
	GetByCode(ctx context.Context, company, code int) (storage.Customer, error)
	SearchByName(ctx context.Context, company int, q string) ([]storage.Customer, error)
	Create(ctx context.Context, c storage.Customer) (storage.Customer, error)
	UpdateField(ctx context.Context, company, code int, field, value string) error
	AssignZone(ctx context.Context, company, code int, zoneID int64) error
	AdjustDeposits(ctx context.Context, company, code, delta int) (int, error)
	Delete(ctx context.Context, company, code int) error
}

// ZoneDirectory lists delivery zones for the zone-assignment branch.
type ZoneDirectory interface {
	List(ctx context.Context, company int) ([]storage.Zone, error)
}

var fieldLabels = map[string]string{
	"name":    "Nombre",
	"surname": "Apellido",
	"phone":   "Teléfono",
	"address": "Dirección",
}

// Flow is the client-management state machine.
type Flow struct {
	conv      *conversation.Dispatcher
	customers Registry
	zones     ZoneDirectory
	validate  *validator.Validate
}

// New constructs the flow with its collaborators.
func New(conv *conversation.Dispatcher, customers Registry, zones ZoneDirectory) *Flow {
	return &Flow{
		conv:      conv,
		customers: customers,
		zones:     zones,
		validate:  validator.New(),
	}
}

// Name implements conversation.Flow.
func (f *Flow) Name() string { return FlowName }

// NewData implements conversation.Flow.
func (f *Flow) NewData() any { return &Data{} }

// Steps implements conversation.Flow.
func (f *Flow) Steps() conversation.StepTable {
	return conversation.StepTable{
		stepMenu:     f.stepMenu,
		stepName:     f.stepName,
		stepSurname:  f.stepSurname,
		stepPhone:    f.stepPhone,
		stepAddress:  f.stepAddress,
		stepFind:     f.stepFind,
		stepNewValue: f.stepNewValue,
		stepDelta:    f.stepDelta,
	}
}

// Begin opens the client menu for the acting seller.
func (f *Flow) Begin(c tele.Context, seller storage.Seller) error {
	s, err := f.conv.Begin(c, FlowName)
	if err != nil {
		return err
	}
	d := s.Data.(*Data)
	d.Company = seller.Company
	f.conv.Sessions().Save(s)

	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "➕ Crear", Unique: cbMode, Data: modeCreate},
			{Text: "✏️ Modificar", Unique: cbMode, Data: modeEdit},
		},
		[]keyboard.InlineBtn{
			{Text: "🗑 Eliminar", Unique: cbMode, Data: modeDelete},
			{Text: "🧴 Envases", Unique: cbMode, Data: modeDeposits},
		},
		[]keyboard.InlineBtn{
			{Text: "📍 Zona", Unique: cbMode, Data: modeZone},
		},
	)
	return tghelpers.SendText(c, "👥 Clientes. ¿Qué querés hacer?", &tele.SendOptions{ReplyMarkup: markup})
}

// Callbacks registers the flow's button handlers.
func (f *Flow) Callbacks(reg *tg.Registry) error {
	for key, h := range map[string]tele.HandlerFunc{
		cbMode:     f.onMode,
		cbCustomer: f.onCustomerPicked,
		cbField:    f.onFieldPicked,
		cbConfirm:  f.onDeleteConfirm,
		cbZone:     f.onZonePicked,
	} {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

// Text at the menu step only points back to the buttons.
func (f *Flow) stepMenu(c tele.Context, _ *conversation.Session) error {
	return tghelpers.SendText(c, "Elegí una opción con los botones, o escribí /cancelar para salir.")
}

// Callback: branch selection. Create jumps into the field sequence; every
// other branch starts at the shared customer search step.
func (f *Flow) onMode(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	d := s.Data.(*Data)
	mode := callbacks.CallbackPayload(c)
	switch mode {
	case modeCreate:
		d.Mode = mode
		s.Step = stepName
		f.conv.Sessions().Save(s)
		return tghelpers.SendText(c, "Nombre del cliente:")
	case modeEdit, modeDelete, modeDeposits, modeZone:
		d.Mode = mode
		s.Step = stepFind
		f.conv.Sessions().Save(s)
		return tghelpers.SendText(c, "Ingresá el código o el nombre del cliente.")
	default:
		return nil
	}
}

func (f *Flow) stepName(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	name := strings.TrimSpace(c.Text())
	if err := f.validate.Var(name, "required,min=2"); err != nil {
		return tghelpers.SendText(c, "El nombre debe tener al menos 2 letras. Probá de nuevo.")
	}
	d.Draft.Name = name
	f.conv.Sessions().Save(s)
	f.conv.Sessions().Advance(s.ChatID)
	return tghelpers.SendText(c, "Apellido (o - para omitir):")
}

func (f *Flow) stepSurname(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	text := strings.TrimSpace(c.Text())
	if text == "-" {
		text = ""
	}
	if err := f.validate.Var(text, "omitempty,min=2"); err != nil {
		return tghelpers.SendText(c, "El apellido debe tener al menos 2 letras, o - para omitirlo.")
	}
	d.Draft.Surname = text
	f.conv.Sessions().Save(s)
	f.conv.Sessions().Advance(s.ChatID)
	return tghelpers.SendText(c, "Teléfono (o - para omitir):")
}

func (f *Flow) stepPhone(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	text := strings.TrimSpace(c.Text())
	if text == "-" {
		text = ""
	}
	if err := f.validate.Var(text, "omitempty,numeric,min=6"); err != nil {
		return tghelpers.SendText(c, "El teléfono debe ser numérico, de al menos 6 dígitos, o - para omitirlo.")
	}
	d.Draft.Phone = text
	f.conv.Sessions().Save(s)
	f.conv.Sessions().Advance(s.ChatID)
	return tghelpers.SendText(c, "Dirección:")
}

// Last creation step: the whole draft is validated before persisting, so a
// field that slipped through its own check still cannot reach the database.
func (f *Flow) stepAddress(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	draft := d.Draft
	draft.Address = strings.TrimSpace(c.Text())
	if err := f.validate.Struct(draft); err != nil {
		return tghelpers.SendText(c, "La dirección debe tener al menos 4 caracteres. Probá de nuevo.")
	}
	d.Draft = draft

	ctx := tghelpers.BuildContext(c)
	created, err := f.customers.Create(ctx, storage.Customer{
		Company: d.Company,
		Name:    d.Draft.Name,
		Surname: d.Draft.Surname,
		Phone:   d.Draft.Phone,
		Address: d.Draft.Address,
	})
	if err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude crear el cliente. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("✅ Cliente creado: %d · %s.", created.Code, created.FullName()))
}

// Shared search step for edit, delete, deposits, and zone branches.
func (f *Flow) stepFind(c tele.Context, s *conversation.Session) error {
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

// selectCustomer routes the chosen customer into the active branch.
func (f *Flow) selectCustomer(c tele.Context, s *conversation.Session, cust storage.Customer) error {
	d := s.Data.(*Data)
	d.CustomerCode = cust.Code
	d.CustomerName = cust.FullName()

	switch d.Mode {
	case modeEdit:
		f.conv.Sessions().Save(s)
		btns := make([]keyboard.InlineBtn, 0, len(fieldLabels))
		for _, field := range []string{"name", "surname", "phone", "address"} {
			btns = append(btns, keyboard.InlineBtn{Text: fieldLabels[field], Unique: cbField, Data: field})
		}
		return tghelpers.SendText(c, fmt.Sprintf("¿Qué campo de %s querés modificar?", cust.FullName()),
			&tele.SendOptions{ReplyMarkup: keyboard.InlineButtonsNPerRow(btns, 2)})
	case modeDelete:
		f.conv.Sessions().Save(s)
		markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
			{Text: "✅ Sí, eliminar", Unique: cbConfirm, Data: "yes"},
			{Text: "❌ No", Unique: cbConfirm, Data: "no"},
		})
		return tghelpers.SendText(c, fmt.Sprintf("¿Eliminar a %s (código %d)? Esta acción no se puede deshacer.",
			cust.FullName(), cust.Code), &tele.SendOptions{ReplyMarkup: markup})
	case modeDeposits:
		s.Step = stepDelta
		f.conv.Sessions().Save(s)
		return tghelpers.SendText(c, fmt.Sprintf("%s tiene %d envases. Ingresá el ajuste (ej: 2 o -3).",
			cust.FullName(), cust.Deposits))
	case modeZone:
		f.conv.Sessions().Save(s)
		ctx := tghelpers.BuildContext(c)
		zones, err := f.zones.List(ctx, d.Company)
		if err != nil || len(zones) == 0 {
			f.conv.Finish(c, s, conversation.OutcomeFail)
			return tghelpers.SendText(c, "No hay zonas de reparto cargadas.")
		}
		btns := make([]keyboard.InlineBtn, 0, len(zones))
		for _, z := range zones {
			btns = append(btns, keyboard.InlineBtn{Text: z.Name, Unique: cbZone, Data: strconv.FormatInt(z.ID, 10)})
		}
		return tghelpers.SendText(c, fmt.Sprintf("Elegí la zona para %s:", cust.FullName()),
			&tele.SendOptions{ReplyMarkup: keyboard.InlineButtonsNPerRow(btns, 2)})
	default:
		return nil
	}
}

// Callback: edit field picked; jump to the await-value step.
func (f *Flow) onFieldPicked(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	field := callbacks.CallbackPayload(c)
	if _, known := fieldLabels[field]; !known {
		return nil
	}
	d := s.Data.(*Data)
	d.Field = field
	s.Step = stepNewValue
	f.conv.Sessions().Save(s)
	return tghelpers.SendText(c, fmt.Sprintf("Nuevo valor para %s de %s:",
		strings.ToLower(fieldLabels[field]), d.CustomerName))
}

func (f *Flow) stepNewValue(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	value := strings.TrimSpace(c.Text())
	if value == "" {
		return tghelpers.SendText(c, "El valor no puede estar vacío. Probá de nuevo.")
	}
	if d.Field == "phone" {
		if err := f.validate.Var(value, "numeric,min=6"); err != nil {
			return tghelpers.SendText(c, "El teléfono debe ser numérico, de al menos 6 dígitos.")
		}
	}

	ctx := tghelpers.BuildContext(c)
	if err := f.customers.UpdateField(ctx, d.Company, d.CustomerCode, d.Field, value); err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude guardar el cambio. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("✅ %s de %s actualizado.", fieldLabels[d.Field], d.CustomerName))
}

// Callback: delete confirmation. "No" cancels; "yes" persists the removal.
func (f *Flow) onDeleteConfirm(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	d := s.Data.(*Data)
	if callbacks.CallbackPayload(c) != "yes" {
		f.conv.Finish(c, s, conversation.OutcomeCancelled)
		return tghelpers.SendText(c, "Operación cancelada.")
	}

	ctx := tghelpers.BuildContext(c)
	if err := f.customers.Delete(ctx, d.Company, d.CustomerCode); err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude eliminar el cliente. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("🗑 Cliente %s eliminado.", d.CustomerName))
}

// Deposits branch: signed integer adjustment, floored at zero by storage.
func (f *Flow) stepDelta(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	delta, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil || delta == 0 {
		return tghelpers.SendText(c, "Ingresá un número distinto de cero (ej: 2 o -3).")
	}

	ctx := tghelpers.BuildContext(c)
	deposits, err := f.customers.AdjustDeposits(ctx, d.Company, d.CustomerCode, delta)
	if err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude ajustar los envases. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("✅ %s ahora tiene %d envases.", d.CustomerName, deposits))
}

// Callback: zone picked.
func (f *Flow) onZonePicked(c tele.Context) error {
	s, ok := f.conv.Claim(c, FlowName)
	if !ok {
		return nil
	}
	zoneID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return nil
	}
	d := s.Data.(*Data)

	ctx := tghelpers.BuildContext(c)
	if err := f.customers.AssignZone(ctx, d.Company, d.CustomerCode, zoneID); err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude asignar la zona. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("📍 Zona asignada a %s.", d.CustomerName))
}
