package protocol

import (
	"github.com/parley-im/parley-go/internal/model"
)

// Outbound frame types (client → server).
const (
	TypeAuth          = "auth"
	TypePing          = "ping"
	TypePresenceRenew = "presence.renew"
	TypeSubscribe     = "room.subscribe"
	TypeUnsubscribe   = "room.unsubscribe"
	TypeMessageSend   = "message.send"
	TypeMessageEdit   = "message.edit"
	TypeMessageDelete = "message.delete"
	TypeTypingSet     = "typing.set"
	TypeCursorMove    = "collab.cursor"
	TypeCallJoin      = "call.join"
	TypeCallLeave     = "call.leave"
	TypeCallSignal    = "call.signal"
)

// Inbound frame types (server → client).
const (
	TypeAuthSuccess     = "auth.success"
	TypeAuthError       = "auth.error"
	TypePong            = "pong"
	TypeSubscribed      = "room.subscribed"
	TypeUnsubscribed    = "room.unsubscribed"
	TypeSubscribeDenied = "room.denied"
	TypeMessageCreated  = "message.created"
	TypeMessageUpdated  = "message.updated"
	TypeMessageDeleted  = "message.deleted"
	TypeTypingChanged   = "typing.changed"
	TypePresenceJoined  = "presence.joined"
	TypePresenceLeft    = "presence.left"
	TypePresenceOnline  = "presence.online"
	TypePresenceOffline = "presence.offline"
	TypeCursorChanged   = "collab.cursor"
	TypeContentChanged  = "collab.content"
	TypeCallRoster      = "call.roster"
	TypeNotifyMessage   = "notify.message"
	TypeError           = "error"
)

// -----------------------------------------------------------------------------
// Handshake / liveness payloads
// -----------------------------------------------------------------------------

// AuthPayload carries the bearer credential as the first application-level
// frame after transport open. The credential never appears in the URL.
type AuthPayload struct {
	Token string `json:"token"`
}

// AuthSuccessPayload identifies the authenticated user and the current
// global online set.
type AuthSuccessPayload struct {
	UserID        int64   `json:"user_id"`
	OnlineUserIDs []int64 `json:"online_user_ids"`
}

// AuthErrorPayload carries a human-readable rejection reason.
type AuthErrorPayload struct {
	Reason string `json:"reason"`
}

// PongPayload carries the server timestamp for the matching ping.
type PongPayload struct {
	ServerTime int64 `json:"server_time"` // Unix milliseconds
}

// -----------------------------------------------------------------------------
// Subscription payloads
// -----------------------------------------------------------------------------

// RoomRef names a room in subscribe/unsubscribe traffic.
type RoomRef struct {
	RoomID string `json:"room_id"`
}

// SubscribedPayload confirms a subscription and carries the room's current
// presence snapshot.
type SubscribedPayload struct {
	RoomID   string         `json:"room_id"`
	Presence model.Presence `json:"presence"`
}

// SubscribeDeniedPayload rejects a subscription attempt.
type SubscribeDeniedPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

// -----------------------------------------------------------------------------
// Message payloads
// -----------------------------------------------------------------------------

// MessageSendPayload creates a new message. CorrelationID is client-chosen
// and echoed back on message.created; it is never shown to other users.
type MessageSendPayload struct {
	RoomID        string            `json:"room_id"`
	CorrelationID string            `json:"correlation_id"`
	Content       string            `json:"content"`
	Attachment    *model.Attachment `json:"attachment,omitempty"`
}

// MessageEditPayload replaces the content of an existing message.
type MessageEditPayload struct {
	RoomID    string `json:"room_id"`
	MessageID int64  `json:"message_id"`
	Content   string `json:"content"`
}

// MessageDeletePayload removes a message.
type MessageDeletePayload struct {
	RoomID    string `json:"room_id"`
	MessageID int64  `json:"message_id"`
}

// MessageEventPayload is the server's view of a created or updated message.
type MessageEventPayload struct {
	Message model.Message `json:"message"`
}

// MessageDeletedPayload announces a deletion.
type MessageDeletedPayload struct {
	RoomID    string `json:"room_id"`
	MessageID int64  `json:"message_id"`
}

// -----------------------------------------------------------------------------
// Ephemeral payloads
// -----------------------------------------------------------------------------

// TypingSetPayload reports this client's typing state for a room.
type TypingSetPayload struct {
	RoomID string `json:"room_id"`
	Typing bool   `json:"typing"`
}

// TypingChangedPayload is the server's merged typing set for a room.
type TypingChangedPayload struct {
	RoomID        string  `json:"room_id"`
	TypingUserIDs []int64 `json:"typing_user_ids"`
}

// PresenceChangePayload announces a user joining or leaving a room.
type PresenceChangePayload struct {
	RoomID   string         `json:"room_id"`
	UserID   int64          `json:"user_id"`
	Presence model.Presence `json:"presence"`
}

// OnlinePayload announces a global online/offline notice.
type OnlinePayload struct {
	UserID int64 `json:"user_id"`
}

// CursorPayload positions a user's collaborative cursor within a room.
type CursorPayload struct {
	RoomID string `json:"room_id"`
	UserID int64  `json:"user_id,omitempty"` // Set by the server on inbound frames
	Start  int    `json:"start"`
	End    int    `json:"end"`
}

// ContentChangedPayload carries a collaborative content revision.
type ContentChangedPayload struct {
	RoomID   string `json:"room_id"`
	UserID   int64  `json:"user_id"`
	Revision int64  `json:"revision"`
	Content  string `json:"content"`
}

// -----------------------------------------------------------------------------
// Call payloads
// -----------------------------------------------------------------------------

// CallRosterPayload is the authoritative participant list for a room's call.
type CallRosterPayload struct {
	RoomID       string                  `json:"room_id"`
	Participants []model.CallParticipant `json:"participants"`
}

// CallSignalPayload relays WebRTC signaling (offer/answer/ICE) between
// call participants. The body is opaque to the sync client.
type CallSignalPayload struct {
	RoomID     string `json:"room_id"`
	FromUserID int64  `json:"from_user_id,omitempty"`
	ToUserID   int64  `json:"to_user_id"`
	Kind       string `json:"kind"` // "offer", "answer", "ice-candidate"
	Body       string `json:"body"`
}

// -----------------------------------------------------------------------------
// Notifications and errors
// -----------------------------------------------------------------------------

// NotifyMessagePayload announces a new message in a room the client has not
// subscribed to.
type NotifyMessagePayload struct {
	RoomID   string `json:"room_id"`
	SenderID int64  `json:"sender_id"`
	Preview  string `json:"preview"`
}

// ErrorPayload is a tagged application-level error from the server.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
