package conversation

import (
	"fmt"
	"strings"

	"pedidosbot/core/logger"
	"pedidosbot/core/metrics"
	tghelpers "pedidosbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Outcome labels for flow termination, used in logs and metrics.
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeFail      = "fail"
)

const (
	msgCancelled = "Operación cancelada."
	msgFlowError = "Ocurrió un error y la operación fue cancelada. Podés empezar de nuevo desde el menú."
)

// Dispatcher routes inbound text events to the active flow's current step and
// enforces the cross-flow rules: cancellation always wins, only the owning
// flow sees the event, and unknown steps terminate the flow.
type Dispatcher struct {
	store       Store
	flows       map[string]Flow
	cancelToken string
}

// NewDispatcher builds a dispatcher over the given store. cancelToken is
// matched case-insensitively against every inbound text before step logic.
func NewDispatcher(store Store, cancelToken string) *Dispatcher {
	return &Dispatcher{
		store:       store,
		flows:       make(map[string]Flow),
		cancelToken: cancelToken,
	}
}

// Register adds a flow to the dispatch table.
func (d *Dispatcher) Register(f Flow) error {
	if f == nil || f.Name() == "" {
		return fmt.Errorf("conversation: invalid flow registration")
	}
	if _, exists := d.flows[f.Name()]; exists {
		return fmt.Errorf("conversation: flow already registered: %s", f.Name())
	}
	d.flows[f.Name()] = f
	RegisterData(f.Name(), f.NewData)
	return nil
}

// Sessions exposes the underlying store to flow handlers.
func (d *Dispatcher) Sessions() Store { return d.store }

// InProgress reports whether the chat has an active flow.
func (d *Dispatcher) InProgress(chatID int64) bool {
	_, ok := d.store.Get(chatID)
	return ok
}

// Begin starts the named flow for the chat, silently overwriting any previous
// session. There is no cancellation message on overwrite; explicit
// cancellation is the only path that acknowledges.
func (d *Dispatcher) Begin(c tele.Context, name string) (*Session, error) {
	f, ok := d.flows[name]
	if !ok {
		return nil, fmt.Errorf("conversation: unknown flow: %s", name)
	}
	chatID := c.Chat().ID
	s := d.store.Start(chatID, name, f.NewData())
	metrics.FlowsStarted.WithLabelValues(name).Inc()
	ctx := tghelpers.BuildContext(c)
	logger.CONV.LogAttrs(ctx, slog.LevelInfo, "flow started",
		slog.String("event", "flow.start"),
		slog.Int64("chat_id", chatID),
		slog.String("flow", name),
	)
	return s, nil
}

// Finish ends the session for the chat and records the outcome.
func (d *Dispatcher) Finish(c tele.Context, s *Session, outcome string) {
	d.store.End(s.ChatID)
	metrics.FlowsEnded.WithLabelValues(s.Flow, outcome).Inc()
	ctx := tghelpers.BuildContext(c)
	logger.CONV.LogAttrs(ctx, slog.LevelInfo, "flow ended",
		slog.String("event", "flow.end"),
		slog.Int64("chat_id", s.ChatID),
		slog.String("flow", s.Flow),
		slog.String("outcome", outcome),
	)
}

// Claim returns the chat's session only when it belongs to the named flow.
// Callback handlers use it so a delayed button press from an abandoned flow
// is never applied to a session that has moved on.
func (d *Dispatcher) Claim(c tele.Context, flowName string) (*Session, bool) {
	s, ok := d.store.Get(c.Chat().ID)
	if !ok || s.Flow != flowName {
		return nil, false
	}
	return s, true
}

// HandleText routes an inbound text event. It reports whether the event was
// consumed, so the caller knows not to also try command parsing.
func (d *Dispatcher) HandleText(c tele.Context) (bool, error) {
	chatID := c.Chat().ID
	s, ok := d.store.Get(chatID)
	if !ok {
		return false, nil
	}

	text := strings.TrimSpace(c.Text())
	if strings.EqualFold(text, d.cancelToken) {
		d.Finish(c, s, OutcomeCancelled)
		return true, tghelpers.SendText(c, msgCancelled)
	}

	flow, ok := d.flows[s.Flow]
	if !ok {
		// Session references a flow this build does not know; fatal.
		d.Finish(c, s, OutcomeFail)
		return true, tghelpers.SendText(c, msgFlowError)
	}

	step, ok := flow.Steps()[s.Step]
	if !ok {
		ctx := tghelpers.BuildContext(c)
		logger.CONV.LogAttrs(ctx, slog.LevelError, "unknown step",
			slog.String("event", "step.unknown"),
			slog.Int64("chat_id", chatID),
			slog.String("flow", s.Flow),
			slog.Int("step", s.Step),
		)
		d.Finish(c, s, OutcomeFail)
		return true, tghelpers.SendText(c, msgFlowError)
	}

	if logger.ShouldSampleDebug() {
		ctx := tghelpers.BuildContext(c)
		logger.CONV.LogAttrs(ctx, slog.LevelDebug, "step dispatch",
			slog.String("event", "step.dispatch"),
			slog.Int64("chat_id", chatID),
			slog.String("flow", s.Flow),
			slog.Int("step", s.Step),
		)
	}
	return true, step(c, s)
}
