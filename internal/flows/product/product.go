// Package product implements catalog management: product creation, field
// edits, and deactivation.
package product

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

// FlowName identifies product-management sessions.
const FlowName = "products"

const (
	modeCreate = "create"
	modeEdit   = "edit"
	modeDelete = "delete"
)

const (
	stepMenu = iota
	stepName
	stepPrice
	stepStock
	stepFind
	stepNewValue
)

const (
	cbMode    = "pr_mode"
	cbField   = "pr_field"
	cbConfirm = "pr_del"
)

// Data accumulates one product-management session.
type Data struct {
	Company     int
	Mode        string
	Name        string
	Price       float64
	ProductCode int
	ProductName string
	Field       string
}

// Catalog is the product capability the flow depends on.
type Catalog interface {
	GetByCode(ctx context.Context, company, code int) (storage.Product, error)
	Create(ctx context.Context, p storage.Product) (storage.Product, error)
	UpdateField(ctx context.Context, company, code int, field, value string) error
	Deactivate(ctx context.Context, company, code int) error
}

var fieldLabels = map[string]string{
	"name":  "Nombre",
	"price": "Precio",
	"stock": "Stock",
}

// Flow is the product-management state machine.
type Flow struct {
	conv    *conversation.Dispatcher
	catalog Catalog
}

// New constructs the flow with its collaborators.
func New(conv *conversation.Dispatcher, catalog Catalog) *Flow {
	return &Flow{conv: conv, catalog: catalog}
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
		stepPrice:    f.stepPrice,
		stepStock:    f.stepStock,
		stepFind:     f.stepFind,
		stepNewValue: f.stepNewValue,
	}
}

// Begin opens the product menu for the acting seller.
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
		},
	)
	return tghelpers.SendText(c, "📦 Productos. ¿Qué querés hacer?", &tele.SendOptions{ReplyMarkup: markup})
}

// Callbacks registers the flow's button handlers.
func (f *Flow) Callbacks(reg *tg.Registry) error {
	for key, h := range map[string]tele.HandlerFunc{
		cbMode:    f.onMode,
		cbField:   f.onFieldPicked,
		cbConfirm: f.onDeleteConfirm,
	} {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flow) stepMenu(c tele.Context, _ *conversation.Session) error {
	return tghelpers.SendText(c, "Elegí una opción con los botones, o escribí /cancelar para salir.")
}

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
		return tghelpers.SendText(c, "Nombre del producto:")
	case modeEdit, modeDelete:
		d.Mode = mode
		s.Step = stepFind
		f.conv.Sessions().Save(s)
		return tghelpers.SendText(c, "Ingresá el código del producto.")
	default:
		return nil
	}
}

func (f *Flow) stepName(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	name := strings.TrimSpace(c.Text())
	if len(name) < 2 {
		return tghelpers.SendText(c, "El nombre debe tener al menos 2 caracteres. Probá de nuevo.")
	}
	d.Name = name
	f.conv.Sessions().Save(s)
	f.conv.Sessions().Advance(s.ChatID)
	return tghelpers.SendText(c, "Precio unitario (ej: 1250.50):")
}

func (f *Flow) stepPrice(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	price, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(c.Text()), ",", "."), 64)
	if err != nil || price < 0 {
		return tghelpers.SendText(c, "Precio inválido. Ingresá un número mayor o igual a cero.")
	}
	d.Price = price
	f.conv.Sessions().Save(s)
	f.conv.Sessions().Advance(s.ChatID)
	return tghelpers.SendText(c, "Stock inicial:")
}

func (f *Flow) stepStock(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	stock, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil || stock < 0 {
		return tghelpers.SendText(c, "Stock inválido. Ingresá un número entero mayor o igual a cero.")
	}

	ctx := tghelpers.BuildContext(c)
	created, err := f.catalog.Create(ctx, storage.Product{
		Company: d.Company,
		Name:    d.Name,
		Price:   d.Price,
		Stock:   stock,
	})
	if err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude crear el producto. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("✅ Producto creado: %d · %s (%s).",
		created.Code, created.Name, format.Money(created.Price)))
}

// Shared lookup step for edit and delete branches. Products are picked by
// exact code only; the grid with names lives in the order flow.
func (f *Flow) stepFind(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	code, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil {
		return tghelpers.SendText(c, "Ingresá un código numérico de producto.")
	}

	ctx := tghelpers.BuildContext(c)
	p, err := f.catalog.GetByCode(ctx, d.Company, code)
	if errors.Is(err, storage.ErrNotFound) {
		return tghelpers.SendText(c, "No existe un producto con ese código. Probá de nuevo.")
	}
	if err != nil {
		return tghelpers.SendText(c, "No pude buscar el producto, intentá de nuevo.")
	}
	d.ProductCode = p.Code
	d.ProductName = p.Name

	switch d.Mode {
	case modeEdit:
		f.conv.Sessions().Save(s)
		btns := make([]keyboard.InlineBtn, 0, len(fieldLabels))
		for _, field := range []string{"name", "price", "stock"} {
			btns = append(btns, keyboard.InlineBtn{Text: fieldLabels[field], Unique: cbField, Data: field})
		}
		return tghelpers.SendText(c, fmt.Sprintf("¿Qué campo de %s querés modificar?", p.Name),
			&tele.SendOptions{ReplyMarkup: keyboard.InlineButtonsNPerRow(btns, 3)})
	case modeDelete:
		f.conv.Sessions().Save(s)
		markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
			{Text: "✅ Sí, eliminar", Unique: cbConfirm, Data: "yes"},
			{Text: "❌ No", Unique: cbConfirm, Data: "no"},
		})
		return tghelpers.SendText(c, fmt.Sprintf("¿Eliminar %s (código %d) del catálogo?", p.Name, p.Code),
			&tele.SendOptions{ReplyMarkup: markup})
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
		strings.ToLower(fieldLabels[field]), d.ProductName))
}

func (f *Flow) stepNewValue(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	value := strings.TrimSpace(c.Text())

	switch d.Field {
	case "price":
		value = strings.ReplaceAll(value, ",", ".")
		if v, err := strconv.ParseFloat(value, 64); err != nil || v < 0 {
			return tghelpers.SendText(c, "Precio inválido. Ingresá un número mayor o igual a cero.")
		}
	case "stock":
		if v, err := strconv.Atoi(value); err != nil || v < 0 {
			return tghelpers.SendText(c, "Stock inválido. Ingresá un número entero mayor o igual a cero.")
		}
	default:
		if len(value) < 2 {
			return tghelpers.SendText(c, "El nombre debe tener al menos 2 caracteres. Probá de nuevo.")
		}
	}

	ctx := tghelpers.BuildContext(c)
	if err := f.catalog.UpdateField(ctx, d.Company, d.ProductCode, d.Field, value); err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude guardar el cambio. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("✅ %s de %s actualizado.", fieldLabels[d.Field], d.ProductName))
}

// Callback: delete confirmation. Products are deactivated, never removed, so
// existing order lines keep their description and price history.
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
	if err := f.catalog.Deactivate(ctx, d.Company, d.ProductCode); err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude eliminar el producto. La operación fue cancelada.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, fmt.Sprintf("🗑 Producto %s eliminado del catálogo.", d.ProductName))
}
