package browser

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// browsableInputs are the inputs that expose a content list.
var browsableInputs = map[string]bool{
	"server":    true,
	"net_radio": true,
	"usb":       true,
	"tidal":     true,
	"deezer":    true,
	"qobuz":     true,
}

// IsBrowsableInput reports whether input exposes a content list.
func IsBrowsableInput(input string) bool {
	return browsableInputs[input]
}

type sessionKey struct {
	address string
	input   string
}

// Manager owns the browse sessions, one per (device, input).
type Manager struct {
	client     Lister
	windowSize int
	zone       string

	mu       sync.Mutex
	sessions map[string]*Session
	byKey    map[sessionKey]*Session
}

// NewManager creates a session manager.
func NewManager(client Lister, windowSize int, zone string) *Manager {
	return &Manager{
		client:     client,
		windowSize: windowSize,
		zone:       zone,
		sessions:   make(map[string]*Session),
		byKey:      make(map[sessionKey]*Session),
	}
}

// Open returns the session for (address, input), creating it if needed.
func (m *Manager) Open(address, input string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{address: address, input: input}
	if s, ok := m.byKey[key]; ok {
		return s
	}

	s := NewSession(uuid.New().String(), address, input, m.client, m.windowSize, m.zone)
	m.sessions[s.ID] = s
	m.byKey[key] = s

	log.Debug().Str("session", s.ID).Str("address", address).Str("input", input).Msg("Browse session opened")
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close discards a session. It reports whether the session existed.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	delete(m.sessions, id)
	delete(m.byKey, sessionKey{address: s.Address, input: s.Input})
	return true
}

// CloseDevice discards every session of a device.
func (m *Manager) CloseDevice(address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, s := range m.sessions {
		if s.Address == address {
			delete(m.sessions, id)
			delete(m.byKey, sessionKey{address: s.Address, input: s.Input})
			n++
		}
	}
	return n
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
