package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Sketch/internal/core"
	"github.com/dkeye/Sketch/internal/domain"
)

type gameEntry struct {
	mu      sync.Mutex
	session *core.Session
}

// GameManager is the keyed collection of live game sessions: one entry per
// room, each behind its own lock. Unrelated rooms never contend; all
// mutations for one room serialize through Do.
type GameManager struct {
	mu    sync.RWMutex
	games map[domain.RoomID]*gameEntry
}

func NewGameManager() *GameManager {
	return &GameManager{games: make(map[domain.RoomID]*gameEntry)}
}

// Start creates the session for a room. Returns false when a session
// already exists: a stray duplicate start must not reset a running game.
func (m *GameManager) Start(roomID domain.RoomID, drawer string, players []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[roomID]; ok {
		return false
	}
	m.games[roomID] = &gameEntry{session: core.NewSession(drawer, players)}
	log.Info().Str("module", "app.games").Int64("room", int64(roomID)).Str("drawer", drawer).Int("players", len(players)).Msg("session created")
	return true
}

// Do runs fn with exclusive access to the room's session. Returns false if
// the room has no session. fn must not block on network I/O; outbound
// frames are queued, not written, inside the critical section.
func (m *GameManager) Do(roomID domain.RoomID, fn func(*core.Session)) bool {
	m.mu.RLock()
	entry, ok := m.games[roomID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session == nil {
		return false
	}
	fn(entry.session)
	return true
}

func (m *GameManager) Exists(roomID domain.RoomID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.games[roomID]
	return ok
}

// End destroys the room's session. The entry lock is taken so an in-flight
// Do finishes before the session is garbage.
func (m *GameManager) End(roomID domain.RoomID) bool {
	m.mu.Lock()
	entry, ok := m.games[roomID]
	if ok {
		delete(m.games, roomID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	entry.mu.Lock()
	entry.session = nil
	entry.mu.Unlock()
	log.Info().Str("module", "app.games").Int64("room", int64(roomID)).Msg("session destroyed")
	return true
}
