package conversation

import "sync"

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore constructs the in-process Store implementation. Sessions are
// ephemeral: they live until ended or overwritten, never expire by time.
func NewMemoryStore() Store {
	return &memoryStore{sessions: make(map[int64]*Session)}
}

func (m *memoryStore) Start(chatID int64, flow string, data any) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{ChatID: chatID, Flow: flow, Step: 0, Data: data}
	m.sessions[chatID] = s
	return s
}

func (m *memoryStore) Get(chatID int64) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatID]
	return s, ok
}

func (m *memoryStore) Save(s *Session) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Only persist when this session is still the live one; a flow started
	// after the fetch must not be clobbered by a stale handler.
	if live, ok := m.sessions[s.ChatID]; ok && live == s {
		return // shared pointer, mutations already visible
	}
}

func (m *memoryStore) Advance(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[chatID]; ok {
		s.Step++
	}
}

func (m *memoryStore) End(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
