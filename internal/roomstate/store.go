package roomstate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/parley-im/parley-go/internal/metrics"
	"github.com/parley-im/parley-go/internal/model"
)

// Reconciliation outcomes, used for logging and metrics.
const (
	outcomeCorrelation = "correlation"
	outcomeHeuristic   = "heuristic"
	outcomeDuplicate   = "duplicate"
	outcomeInsert      = "insert"
)

// roomState holds all state for one subscribed room.
type roomState struct {
	messages   []model.Message // Always sorted ascending by CreatedAt
	byID       map[int64]struct{}
	typing     []int64
	presence   model.Presence
	cursors    map[int64]model.CursorRange
	call       []model.CallParticipant
	pagination model.Pagination
}

func newRoomState() *roomState {
	return &roomState{
		byID:    make(map[int64]struct{}),
		cursors: make(map[int64]model.CursorRange),
	}
}

// Snapshot is a read-only copy of a room's state.
type Snapshot struct {
	RoomID           string
	Messages         []model.Message
	TypingUserIDs    []int64
	Presence         model.Presence
	Cursors          map[int64]model.CursorRange
	CallParticipants []model.CallParticipant
	Pagination       model.Pagination
}

// Store holds normalized state for all subscribed rooms.
type Store struct {
	logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*roomState

	// Placeholder IDs for optimistic messages, always negative.
	nextPlaceholder int64
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:          logger,
		rooms:           make(map[string]*roomState),
		nextPlaceholder: -1,
	}
}

// room returns the state for roomID, creating it on first reference.
// Caller must hold the write lock.
func (s *Store) room(roomID string) *roomState {
	r, ok := s.rooms[roomID]
	if !ok {
		r = newRoomState()
		s.rooms[roomID] = r
	}
	return r
}

// Forget discards all state for a room (unsubscribe/navigation-away).
func (s *Store) Forget(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

// Rooms returns the ids of all rooms currently held.
func (s *Store) Rooms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		out = append(out, id)
	}
	return out
}

// Messages returns a copy of a room's timeline.
func (s *Store) Messages(roomID string) []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]model.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Room returns a full snapshot copy of a room's state.
func (s *Store) Room(roomID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{
		RoomID:     roomID,
		Messages:   make([]model.Message, len(r.messages)),
		Presence:   r.presence,
		Cursors:    make(map[int64]model.CursorRange, len(r.cursors)),
		Pagination: r.pagination,
	}
	copy(snap.Messages, r.messages)
	snap.TypingUserIDs = append(snap.TypingUserIDs, r.typing...)
	snap.CallParticipants = append(snap.CallParticipants, r.call...)
	for id, c := range r.cursors {
		snap.Cursors[id] = c
	}
	return snap, true
}

// AddOptimistic inserts a locally-created message with a negative placeholder
// id, to be replaced when the server confirms it.
func (s *Store) AddOptimistic(roomID, correlationID string, senderID int64, content string, attachment *model.Attachment) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	msg := model.Message{
		ID:            s.nextPlaceholder,
		CorrelationID: correlationID,
		RoomID:        roomID,
		SenderID:      senderID,
		Content:       content,
		Attachment:    attachment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.nextPlaceholder--

	r := s.room(roomID)
	r.insert(msg)
	return msg
}

// ApplyMessage merges a server-confirmed message into a room, reconciling it
// against any optimistic entry it may confirm.
func (s *Store) ApplyMessage(roomID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	outcome := r.reconcile(msg)

	metrics.ReconcileOutcomes.WithLabelValues(outcome).Inc()
	s.logger.Debug("message applied",
		"room", roomID,
		"id", msg.ID,
		"outcome", outcome,
	)
}

// ApplyUpdate replaces an existing message in place. An update for a message
// not currently held is merged like a new message.
func (s *Store) ApplyUpdate(roomID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	if _, ok := r.byID[msg.ID]; ok {
		r.replaceByID(msg)
		return
	}
	outcome := r.reconcile(msg)
	metrics.ReconcileOutcomes.WithLabelValues(outcome).Inc()
}

// Remove deletes a message by id. Removing an absent id is a no-op.
func (s *Store) Remove(roomID string, messageID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	r.remove(messageID)
}

// ApplySnapshot replaces a room's entire timeline (full-state fetch).
// Optimistic entries not yet confirmed are preserved on top of the snapshot.
func (s *Store) ApplySnapshot(roomID string, msgs []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)

	var pending []model.Message
	for _, m := range r.messages {
		if !m.Confirmed() {
			pending = append(pending, m)
		}
	}

	r.messages = r.messages[:0]
	r.byID = make(map[int64]struct{}, len(msgs))
	for _, m := range msgs {
		if _, dup := r.byID[m.ID]; dup {
			continue
		}
		r.insert(m)
	}
	// Re-insert unconfirmed entries unless the snapshot already confirmed them.
	for _, m := range pending {
		if m.CorrelationID != "" && r.holdsCorrelation(m.CorrelationID) {
			continue
		}
		r.insert(m)
	}
}

// MergeHistory merges an older-history page into the room, de-duplicating
// against already-held ids, and advances the pagination cursor.
func (s *Store) MergeHistory(roomID string, msgs []model.Message, nextCursor string, hasMore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.room(roomID)
	merged := 0
	for _, m := range msgs {
		if _, dup := r.byID[m.ID]; dup {
			continue
		}
		r.insert(m)
		merged++
	}
	r.pagination = model.Pagination{
		Cursor:  nextCursor,
		HasMore: hasMore,
		Loading: false,
	}

	s.logger.Debug("history page merged",
		"room", roomID,
		"page", len(msgs),
		"merged", merged,
		"has_more", hasMore,
	)
}

// SetHistoryLoading flags an in-flight history fetch for a room.
func (s *Store) SetHistoryLoading(roomID string, loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room(roomID).pagination.Loading = loading
}
