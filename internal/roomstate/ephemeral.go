package roomstate

import (
	"github.com/parley-im/parley-go/internal/model"
)

// Ephemeral substate is last-write-wins per field and is discarded with the
// room on Forget.

// SetTyping replaces the set of users currently typing in a room.
func (s *Store) SetTyping(roomID string, userIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	r.typing = append(r.typing[:0], userIDs...)
}

// SetPresence replaces a room's presence snapshot.
func (s *Store) SetPresence(roomID string, p model.Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).presence = p
}

// SetCursor positions one user's collaborative cursor.
func (s *Store) SetCursor(roomID string, userID int64, c model.CursorRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).cursors[userID] = c
}

// ClearCursor removes one user's cursor (e.g. when they leave the room).
func (s *Store) ClearCursor(roomID string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	delete(r.cursors, userID)
}

// SetCallRoster replaces a room's call participant list.
func (s *Store) SetCallRoster(roomID string, participants []model.CallParticipant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	r.call = append(r.call[:0], participants...)
}
