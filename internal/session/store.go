package session

import (
	"context"
	"sync"

	"github.com/park285/charades-server/internal/domain"
)

// Store keeps the live GameState of every room. Implementations hand out
// copies; callers must Save to commit a change.
type Store interface {
	// Get returns (nil, nil) when the room does not exist.
	Get(ctx context.Context, code string) (*domain.GameState, error)
	Save(ctx context.Context, st *domain.GameState) error
	Delete(ctx context.Context, code string) error
	Codes(ctx context.Context) (map[string]bool, error)
	// RoomOfPlayer returns "" when the player is in no room.
	RoomOfPlayer(ctx context.Context, playerID string) (string, error)
	Close() error
}

type MemoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]*domain.GameState
	byPlayer map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:    make(map[string]*domain.GameState),
		byPlayer: make(map[string]string),
	}
}

func (m *MemoryStore) Get(_ context.Context, code string) (*domain.GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[code].Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, st *domain.GameState) error {
	if st == nil || st.Room.Code == "" {
		return ErrInvalidState
	}
	code := st.Room.Code
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev := m.rooms[code]; prev != nil {
		for _, p := range prev.Room.Players {
			if m.byPlayer[p.ID] == code {
				delete(m.byPlayer, p.ID)
			}
		}
	}
	m.rooms[code] = st.Clone()
	for _, p := range st.Room.Players {
		m.byPlayer[p.ID] = code
	}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev := m.rooms[code]; prev != nil {
		for _, p := range prev.Room.Players {
			if m.byPlayer[p.ID] == code {
				delete(m.byPlayer, p.ID)
			}
		}
	}
	delete(m.rooms, code)
	return nil
}

func (m *MemoryStore) Codes(_ context.Context) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.rooms))
	for c := range m.rooms {
		out[c] = true
	}
	return out, nil
}

func (m *MemoryStore) RoomOfPlayer(_ context.Context, playerID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byPlayer[playerID], nil
}

func (m *MemoryStore) Close() error { return nil }
