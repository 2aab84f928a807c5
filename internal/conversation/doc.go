// Package conversation implements the per-chat session model behind every
// multi-step flow: a session store keyed by chat ID, a flow registry, and a
// dispatcher that routes inbound text to the active flow's current step.
//
// A flow supplies a step table (step index -> handler) and a typed data
// record; the dispatcher owns the cross-cutting rules: the cancellation token
// always wins, a stray event never reaches a flow that does not own the
// session, and an unknown step index terminates the flow with a generic error.
package conversation
