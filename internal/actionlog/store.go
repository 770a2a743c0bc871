package actionlog

import (
	"sort"
	"sync"

	"github.com/lox/holdem-arena/internal/game"
)

// Store is the per-room append-only action trail. The settler appends each
// completed hand's records and clears the room once its batch is flushed;
// the API exposes the live trail for auditing.
type Store struct {
	mu    sync.RWMutex
	rooms map[string][]game.ActionRecord
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{rooms: make(map[string][]game.ActionRecord)}
}

// Append adds records to a room's trail.
func (s *Store) Append(roomID string, records ...game.ActionRecord) {
	if len(records) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID] = append(s.rooms[roomID], records...)
}

// Entries returns a copy of a room's trail in append order.
func (s *Store) Entries(roomID string) []game.ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]game.ActionRecord(nil), s.rooms[roomID]...)
}

// Len returns the number of records held for a room.
func (s *Store) Len(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms[roomID])
}

// Clear drops a room's trail.
func (s *Store) Clear(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// Rooms lists rooms with recorded actions, sorted by ID.
func (s *Store) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
