package roomstate

import (
	"github.com/parley-im/parley-go/internal/events"
	"github.com/parley-im/parley-go/internal/metrics"
	"github.com/parley-im/parley-go/internal/model"
	"github.com/parley-im/parley-go/internal/protocol"
)

// Bind registers the store's handlers on the event router. Malformed payloads
// are logged and dropped; they never stop the dispatch loop.
func (s *Store) Bind(router *events.Router) {
	router.On(protocol.TypeMessageCreated, func(f protocol.Frame) {
		var p protocol.MessageEventPayload
		if !s.decode(f, &p) {
			return
		}
		s.ApplyMessage(p.Message.RoomID, p.Message)
	})

	router.On(protocol.TypeMessageUpdated, func(f protocol.Frame) {
		var p protocol.MessageEventPayload
		if !s.decode(f, &p) {
			return
		}
		s.ApplyUpdate(p.Message.RoomID, p.Message)
	})

	router.On(protocol.TypeMessageDeleted, func(f protocol.Frame) {
		var p protocol.MessageDeletedPayload
		if !s.decode(f, &p) {
			return
		}
		s.Remove(p.RoomID, p.MessageID)
	})

	router.On(protocol.TypeTypingChanged, func(f protocol.Frame) {
		var p protocol.TypingChangedPayload
		if !s.decode(f, &p) {
			return
		}
		s.SetTyping(p.RoomID, p.TypingUserIDs)
	})

	router.On(protocol.TypePresenceJoined, func(f protocol.Frame) {
		var p protocol.PresenceChangePayload
		if !s.decode(f, &p) {
			return
		}
		s.SetPresence(p.RoomID, p.Presence)
	})

	router.On(protocol.TypePresenceLeft, func(f protocol.Frame) {
		var p protocol.PresenceChangePayload
		if !s.decode(f, &p) {
			return
		}
		s.SetPresence(p.RoomID, p.Presence)
		s.ClearCursor(p.RoomID, p.UserID)
	})

	router.On(protocol.TypeSubscribed, func(f protocol.Frame) {
		var p protocol.SubscribedPayload
		if !s.decode(f, &p) {
			return
		}
		s.SetPresence(p.RoomID, p.Presence)
	})

	router.On(protocol.TypeCursorChanged, func(f protocol.Frame) {
		var p protocol.CursorPayload
		if !s.decode(f, &p) {
			return
		}
		s.SetCursor(p.RoomID, p.UserID, model.CursorRange{Start: p.Start, End: p.End})
	})

	router.On(protocol.TypeCallRoster, func(f protocol.Frame) {
		var p protocol.CallRosterPayload
		if !s.decode(f, &p) {
			return
		}
		s.SetCallRoster(p.RoomID, p.Participants)
	})
}

// decode unmarshals a frame payload, counting and logging failures.
func (s *Store) decode(f protocol.Frame, v any) bool {
	if err := f.Unmarshal(v); err != nil {
		metrics.ParseErrors.Inc()
		s.logger.Warn("dropping malformed frame", "type", f.Type, "error", err)
		return false
	}
	return true
}
