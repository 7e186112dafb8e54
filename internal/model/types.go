package model

import "time"

// -----------------------------------------------------------------------------
// Messages
// -----------------------------------------------------------------------------

// Attachment is a file attached to a message.
type Attachment struct {
	URL      string `json:"url"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message is a single chat message in a room.
//
// Confirmed messages carry the server-assigned ID, stable once confirmed.
// Optimistic (not yet confirmed) messages carry a negative placeholder ID and
// a client-chosen CorrelationID used only for reconciliation.
type Message struct {
	ID            int64       `json:"id"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	RoomID        string      `json:"room_id"`
	SenderID      int64       `json:"sender_id"`
	Content       string      `json:"content"`
	Attachment    *Attachment `json:"attachment,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Confirmed reports whether the message has a server-assigned ID.
func (m Message) Confirmed() bool {
	return m.ID > 0
}

// -----------------------------------------------------------------------------
// Ephemeral room substate
// -----------------------------------------------------------------------------

// Presence is the presence snapshot for a room.
type Presence struct {
	Count     int     `json:"count"`
	MemberIDs []int64 `json:"member_ids"`
	Truncated bool    `json:"truncated"` // Member list capped by the server
}

// CursorRange is a user's collaborative-editing selection within a room.
type CursorRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CallParticipant is one member of a room's real-time call.
type CallParticipant struct {
	UserID int64  `json:"user_id"`
	Muted  bool   `json:"muted"`
	PeerID string `json:"peer_id,omitempty"`
}

// Pagination tracks cursor-based history loading for a room.
type Pagination struct {
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"has_more"`
	Loading bool   `json:"loading"`
}

// Room is a chat room as returned by the REST collaborator.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsDirect  bool      `json:"is_direct"`
	CreatedAt time.Time `json:"created_at"`
}
