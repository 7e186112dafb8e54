package subs

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/parley-im/parley-go/internal/events"
	"github.com/parley-im/parley-go/internal/protocol"
)

// Status is the lifecycle of one room subscription.
type Status int

const (
	// StatusPending means subscribe was sent but not yet confirmed.
	StatusPending Status = iota
	// StatusConfirmed means the server acknowledged the subscription.
	StatusConfirmed
)

// Conn is the outbound frame surface the registry needs. Satisfied by
// session.Manager.
type Conn interface {
	Send(frameType string, payload any) error
}

// Registry is the authoritative record of desired room subscriptions and the
// active call. Subscribe is optimistic: the room counts as subscribed
// immediately and is corrected if the server denies it.
type Registry struct {
	conn   Conn
	logger *slog.Logger

	mu       sync.RWMutex
	rooms    map[string]Status
	callRoom string
}

// NewRegistry creates a subscription registry sending through conn.
func NewRegistry(conn Conn, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conn:   conn,
		logger: logger,
		rooms:  make(map[string]Status),
	}
}

// Subscribe requests delivery for a room. Idempotent: a room already in the
// registry is not re-requested.
func (r *Registry) Subscribe(roomID string) error {
	r.mu.Lock()
	if _, ok := r.rooms[roomID]; ok {
		r.mu.Unlock()
		return nil
	}
	r.rooms[roomID] = StatusPending
	r.mu.Unlock()

	return r.conn.Send(protocol.TypeSubscribe, protocol.RoomRef{RoomID: roomID})
}

// Unsubscribe stops delivery for a room. Idempotent. Leaving a room also
// leaves its call if one is active there.
func (r *Registry) Unsubscribe(roomID string) error {
	r.mu.Lock()
	if _, ok := r.rooms[roomID]; !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.rooms, roomID)
	leavingCall := r.callRoom == roomID
	if leavingCall {
		r.callRoom = ""
	}
	r.mu.Unlock()

	if leavingCall {
		if err := r.conn.Send(protocol.TypeCallLeave, protocol.RoomRef{RoomID: roomID}); err != nil {
			r.logger.Warn("leave call on unsubscribe", "room_id", roomID, "error", err)
		}
	}
	return r.conn.Send(protocol.TypeUnsubscribe, protocol.RoomRef{RoomID: roomID})
}

// IsSubscribed reports whether the room is in the registry, pending or
// confirmed.
func (r *Registry) IsSubscribed(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

// Rooms returns the subscribed room ids in sorted order.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// SetActiveCall records the room whose call this client has joined. Only one
// call at a time; joining a new one implicitly leaves the old.
func (r *Registry) SetActiveCall(roomID string) {
	r.mu.Lock()
	r.callRoom = roomID
	r.mu.Unlock()
}

// ClearActiveCall records that the client left its call.
func (r *Registry) ClearActiveCall() {
	r.mu.Lock()
	r.callRoom = ""
	r.mu.Unlock()
}

// ActiveCall returns the room id of the joined call, or "" when not in one.
func (r *Registry) ActiveCall() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callRoom
}

// Replay re-requests every registered subscription, and rejoins the active
// call. Register it with the session's OnAuthenticated hook so a reconnected
// session restores delivery without application involvement.
func (r *Registry) Replay() {
	rooms := r.Rooms()
	call := r.ActiveCall()

	if len(rooms) > 0 {
		r.logger.Info("replaying subscriptions", "rooms", len(rooms))
	}
	for _, id := range rooms {
		r.mu.Lock()
		r.rooms[id] = StatusPending
		r.mu.Unlock()
		if err := r.conn.Send(protocol.TypeSubscribe, protocol.RoomRef{RoomID: id}); err != nil {
			r.logger.Warn("replay subscribe", "room_id", id, "error", err)
		}
	}

	if call != "" {
		if err := r.conn.Send(protocol.TypeCallJoin, protocol.RoomRef{RoomID: call}); err != nil {
			r.logger.Warn("replay call join", "room_id", call, "error", err)
		}
	}
}

// Clear drops every subscription and the active call without sending
// anything, for explicit disconnects.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.rooms = make(map[string]Status)
	r.callRoom = ""
	r.mu.Unlock()
}

// Bind registers the server-confirmation handlers on the event router.
func (r *Registry) Bind(router *events.Router) {
	router.On(protocol.TypeSubscribed, func(f protocol.Frame) {
		var p protocol.SubscribedPayload
		if err := f.Unmarshal(&p); err != nil {
			r.logger.Warn("malformed room.subscribed", "error", err)
			return
		}
		r.mu.Lock()
		if _, ok := r.rooms[p.RoomID]; ok {
			r.rooms[p.RoomID] = StatusConfirmed
		}
		r.mu.Unlock()
	})

	router.On(protocol.TypeSubscribeDenied, func(f protocol.Frame) {
		var p protocol.SubscribeDeniedPayload
		if err := f.Unmarshal(&p); err != nil {
			r.logger.Warn("malformed room.denied", "error", err)
			return
		}
		r.logger.Warn("subscription denied", "room_id", p.RoomID, "reason", p.Reason)
		r.mu.Lock()
		delete(r.rooms, p.RoomID)
		if r.callRoom == p.RoomID {
			r.callRoom = ""
		}
		r.mu.Unlock()
	})

	router.On(protocol.TypeUnsubscribed, func(f protocol.Frame) {
		var p protocol.RoomRef
		if err := f.Unmarshal(&p); err != nil {
			return
		}
		r.mu.Lock()
		delete(r.rooms, p.RoomID)
		r.mu.Unlock()
	})
}

// Status returns the subscription status for a room.
func (r *Registry) Status(roomID string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.rooms[roomID]
	return s, ok
}
