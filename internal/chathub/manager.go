package chathub

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Manager tracks the set of connected clients. A user holds at most one live
// connection: registering again replaces and closes the previous one.
type Manager struct {
	// mu guards Clients; the map is mutated by Run and read by operators
	// checking connection ownership.
	mu      sync.RWMutex
	Clients map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
}

// NewManager creates the hub.
func NewManager() *Manager {
	return &Manager{
		Clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
	}
}

// IsCurrent reports whether client is still the connection the hub maps for
// its user. A replaced connection is no longer current.
func (m *Manager) IsCurrent(client Client) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Clients[client.GetUserID()] == client
}

// Run is the hub's main loop.
func (m *Manager) Run() {
	log.Info().Msg("chat hub started")

	for {
		select {
		case client := <-m.RegisterCh:
			userID := client.GetUserID()
			m.mu.Lock()
			old, replaced := m.Clients[userID]
			m.Clients[userID] = client
			connected := len(m.Clients)
			m.mu.Unlock()

			if replaced {
				log.Info().Str("user_id", userID).Msg("replacing existing connection")
				old.Close()
			}
			log.Debug().Str("user_id", userID).Int("connected", connected).Msg("client registered")

		case client := <-m.UnregisterCh:
			userID := client.GetUserID()
			m.mu.Lock()
			// Only drop the mapping if it still points at this client; a
			// replacement connection may already own the slot.
			if current, ok := m.Clients[userID]; ok && current == client {
				delete(m.Clients, userID)
			}
			connected := len(m.Clients)
			m.mu.Unlock()

			client.Close()
			log.Debug().Str("user_id", userID).Int("connected", connected).Msg("client unregistered")
		}
	}
}
