// Package contact implements the support flow: a one-step message capture
// forwarded to the operator.
package contact

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "pedidosbot/core/telegram/helpers"
	"pedidosbot/internal/conversation"
	"pedidosbot/internal/storage"
)

// FlowName identifies support sessions.
const FlowName = "contact"

const stepMessage = 0

// Data carries who is asking for help.
type Data struct {
	SellerName string
	SellerCode int
	Company    int
}

// Forwarder delivers a support message to the operator.
type Forwarder interface {
	Forward(c tele.Context, text string) error
}

// Flow is the support state machine.
type Flow struct {
	conv      *conversation.Dispatcher
	forwarder Forwarder
}

// New constructs the flow with its collaborators.
func New(conv *conversation.Dispatcher, forwarder Forwarder) *Flow {
	return &Flow{conv: conv, forwarder: forwarder}
}

// Name implements conversation.Flow.
func (f *Flow) Name() string { return FlowName }

// NewData implements conversation.Flow.
func (f *Flow) NewData() any { return &Data{} }

// Steps implements conversation.Flow.
func (f *Flow) Steps() conversation.StepTable {
	return conversation.StepTable{
		stepMessage: f.stepMessage,
	}
}

// Begin starts a support request for the acting seller.
func (f *Flow) Begin(c tele.Context, seller storage.Seller) error {
	s, err := f.conv.Begin(c, FlowName)
	if err != nil {
		return err
	}
	d := s.Data.(*Data)
	d.SellerName = seller.Name
	d.SellerCode = seller.Code
	d.Company = seller.Company
	f.conv.Sessions().Save(s)
	return tghelpers.SendText(c, "📨 Escribí tu consulta y la reenvío al soporte.")
}

// Step 0: capture and forward.
func (f *Flow) stepMessage(c tele.Context, s *conversation.Session) error {
	d := s.Data.(*Data)
	text := strings.TrimSpace(c.Text())
	if text == "" {
		return tghelpers.SendText(c, "El mensaje no puede estar vacío. Probá de nuevo.")
	}

	msg := fmt.Sprintf("Consulta de %s (vendedor %d, empresa %d):\n%s",
		d.SellerName, d.SellerCode, d.Company, text)
	if err := f.forwarder.Forward(c, msg); err != nil {
		f.conv.Finish(c, s, conversation.OutcomeFail)
		return tghelpers.SendText(c, "No pude enviar tu consulta, intentá más tarde.")
	}
	f.conv.Finish(c, s, conversation.OutcomeOK)
	return tghelpers.SendText(c, "✅ Consulta enviada, te van a responder por este chat.")
}
