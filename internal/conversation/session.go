package conversation

import tele "gopkg.in/telebot.v4"

// Session is the live state of one chat's active flow. At most one session
// exists per chat; starting a new flow overwrites any previous session.
type Session struct {
	ChatID int64
	Flow   string
	Step   int
	Data   any
}

// Store holds sessions keyed by chat ID. Mutations are immediately visible to
// subsequent reads; sessions do not survive process restarts unless the
// implementation is backed by external storage.
type Store interface {
	// Start creates or overwrites the session for chatID with step 0 and the
	// given data record. Overwrite is intentional: it is how starting a new
	// flow discards the previous one.
	Start(chatID int64, flow string, data any) *Session

	// Get returns the current session, if any. Pure read.
	Get(chatID int64) (*Session, bool)

	// Save persists mutated session fields. No-op when the session has been
	// ended or replaced since it was fetched.
	Save(s *Session)

	// Advance increments the step by exactly one. No-op when absent.
	Advance(chatID int64)

	// End removes the session. No-op when absent.
	End(chatID int64)
}

// StepFunc handles one inbound text event for a session sitting at one step.
// Handlers validate input (re-prompting without advancing on invalid input),
// mutate the session data, and advance or end the session. A handler calls
// Advance at most once per event.
type StepFunc func(c tele.Context, s *Session) error

// StepTable maps step indices to their handlers.
type StepTable map[int]StepFunc

// Flow describes one multi-step conversational procedure.
type Flow interface {
	// Name identifies the flow; it is stored in the session and checked by
	// the dispatcher before any step handler runs.
	Name() string
	// NewData returns a fresh, typed data record for a new session.
	NewData() any
	// Steps returns the step table. Steps reached only through callbacks
	// still appear here so stray text at those steps can re-prompt.
	Steps() StepTable
}
