package router

import (
	"strings"
	"time"

	tg "pedidosbot/core/telegram"
	"pedidosbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions wires the text-routing chain. All hooks are optional.
type MessageOptions struct {
	// ClaimPending consumes a single-shot reply marker, if one is armed for
	// this message. Claimed markers win over everything else.
	ClaimPending func(c tele.Context) (tele.HandlerFunc, bool)
	// HandleFlow feeds the text to the active conversation flow. The boolean
	// reports whether the flow consumed the event.
	HandleFlow func(c tele.Context) (bool, error)
	// Fallback runs when nothing claimed the text.
	Fallback tele.HandlerFunc
}

// MessageRoute returns the OnText route. Routing order: pending single-shot
// markers, then command labels and aliases, then the active flow, then the
// fallback. Slash commands registered on the bot never reach this route.
func MessageRoute(reg *tg.Registry, opts MessageOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := strings.TrimSpace(c.Text())

		if opts.ClaimPending != nil {
			if h, ok := opts.ClaimPending(c); ok {
				return handleWithSummary(c, "text.pending_reply", start, "", "", func() error {
					return h(c)
				})
			}
		}

		if name, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
			hname := "text.command." + normalizeHandlerName(name)
			return handleWithSummary(c, hname, start, "", "", func() error {
				return cmd.Handler(c)
			}, slog.String("via", "label"))
		}

		if opts.HandleFlow != nil {
			handled, err := opts.HandleFlow(c)
			if handled {
				logHandlerSummary(c, "text.flow", start, "", "", err)
				return err
			}
		}

		fallback := opts.Fallback
		if fallback == nil {
			fallback = reg.TextFallback()
		}
		if fallback == nil {
			return nil
		}
		return handleWithSummary(c, "text.fallback", start, "", "", func() error {
			return fallback(c)
		})
	}
	return tg.Route{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
