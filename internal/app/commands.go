package app

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"pedidosbot/core/buildinfo"
	"pedidosbot/core/telegram/commands"
	tghelpers "pedidosbot/core/telegram/helpers"
	"pedidosbot/core/telegram/keyboard"
	"pedidosbot/internal/storage"
)

// Menu labels double as command aliases, so a tap on the reply keyboard is
// routed like the slash command even while a flow is waiting for text.
const (
	labelOrder       = "🧾 Pedido"
	labelCollections = "💰 Cobros"
	labelClients     = "👥 Clientes"
	labelProducts    = "📦 Productos"
	labelStock       = "📊 Stock"
	labelReports     = "📈 Reporte"
	labelContact     = "📨 Contacto"
)

func mainMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{labelOrder, labelCollections},
		[]string{labelClients, labelProducts},
		[]string{labelStock, labelReports},
		[]string{labelContact},
	)
}

func (a *App) registerCommands() {
	reg := a.registry

	reg.RegisterCommand("/start", commands.Command{
		Description: "Menú principal",
		Handler:     a.withSeller(a.handleStart),
	})
	reg.RegisterCommand("/pedido", commands.Command{
		Description: "Cargar un pedido",
		Aliases:     []string{labelOrder},
		Handler:     a.withSeller(a.flowOrder.Begin),
	})
	reg.RegisterCommand("/cobros", commands.Command{
		Description: "Registrar cobros",
		Aliases:     []string{labelCollections},
		Handler:     a.withSeller(a.flowCollections.Begin),
	})
	reg.RegisterCommand("/clientes", commands.Command{
		Description: "Administrar clientes",
		Aliases:     []string{labelClients},
		Handler:     a.withSeller(a.flowClients.Begin),
	})
	reg.RegisterCommand("/productos", commands.Command{
		Description: "Administrar productos",
		Aliases:     []string{labelProducts},
		Handler:     a.withSeller(a.flowProduct.Begin),
	})
	reg.RegisterCommand("/stock", commands.Command{
		Description: "Ajustar stock",
		Aliases:     []string{labelStock},
		Handler:     a.withSeller(a.flowStock.Begin),
	})
	reg.RegisterCommand("/reporte", commands.Command{
		Description: "Reporte de ventas",
		Aliases:     []string{labelReports},
		Handler:     a.withSeller(a.flowReports.Begin),
	})
	reg.RegisterCommand("/contacto", commands.Command{
		Description: "Contactar al soporte",
		Aliases:     []string{labelContact},
		Handler:     a.withSeller(a.flowContact.Begin),
	})
	reg.RegisterCommand(a.cfg.Bot.CancelToken, commands.Command{
		Description: "Cancelar la operación en curso",
		Handler:     a.handleCancel,
	})
	reg.RegisterCommand("/version", commands.Command{
		Description: "Versión del bot",
		Hidden:      true,
		AdminOnly:   true,
		Handler:     handleVersion,
	})
}

func handleVersion(c tele.Context) error {
	return tghelpers.SendText(c,
		fmt.Sprintf("pedidosbot %s (%s)", buildinfo.Version, buildinfo.Commit))
}

// withSeller resolves the Telegram account to a sales agent before running
// the command; unknown accounts are rejected with a fixed message.
func (a *App) withSeller(next func(c tele.Context, seller storage.Seller) error) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		seller, err := a.sellers.GetByTelegramID(ctx, c.Sender().ID)
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.SendText(c, "Tu cuenta no está habilitada. Pedile acceso al administrador.")
		}
		if err != nil {
			return tghelpers.SendText(c, "No pude verificar tu cuenta, intentá de nuevo.")
		}
		return next(c, seller)
	}
}

func (a *App) handleStart(c tele.Context, seller storage.Seller) error {
	return tghelpers.SendText(c,
		"Hola "+seller.Name+" 👋 Elegí una opción del menú.",
		&tele.SendOptions{ReplyMarkup: mainMenu()})
}

// handleCancel feeds the cancel token through the flow dispatcher, which owns
// the acknowledgement. With no active flow the command is a polite no-op. Any
// armed single-shot marker for the chat is dropped as well.
func (a *App) handleCancel(c tele.Context) error {
	a.listeners.CancelChat(c.Chat().ID)
	handled, err := a.conv.HandleText(c)
	if handled {
		return err
	}
	return tghelpers.SendText(c, "No hay ninguna operación en curso.")
}
