package outbound

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/parley-im/parley-go/internal/model"
	"github.com/parley-im/parley-go/internal/protocol"
	"github.com/parley-im/parley-go/internal/roomstate"
	"github.com/parley-im/parley-go/internal/subs"
)

// Session is the slice of the connection manager the facade uses.
type Session interface {
	Send(frameType string, payload any) error
	UserID() int64
}

// Commander turns application intents into wire frames. Message sends are
// optimistic: the local timeline gets a placeholder immediately and the
// server's echo reconciles it later.
type Commander struct {
	session Session
	store   *roomstate.Store
	subs    *subs.Registry
	logger  *slog.Logger
}

// NewCommander creates the outbound command facade.
func NewCommander(session Session, store *roomstate.Store, registry *subs.Registry, logger *slog.Logger) *Commander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commander{
		session: session,
		store:   store,
		subs:    registry,
		logger:  logger,
	}
}

// SendMessage submits a new message and returns the optimistic placeholder
// inserted into the local timeline. The placeholder's negative id is replaced
// when the server's message.created arrives with the same correlation id.
func (c *Commander) SendMessage(roomID, content string, attachment *model.Attachment) (model.Message, error) {
	correlationID := uuid.NewString()

	msg := c.store.AddOptimistic(roomID, correlationID, c.session.UserID(), content, attachment)

	err := c.session.Send(protocol.TypeMessageSend, protocol.MessageSendPayload{
		RoomID:        roomID,
		CorrelationID: correlationID,
		Content:       content,
		Attachment:    attachment,
	})
	if err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// EditMessage replaces the content of an existing message. The local copy is
// not touched until the server's message.updated echo arrives.
func (c *Commander) EditMessage(roomID string, messageID int64, content string) error {
	return c.session.Send(protocol.TypeMessageEdit, protocol.MessageEditPayload{
		RoomID:    roomID,
		MessageID: messageID,
		Content:   content,
	})
}

// DeleteMessage removes a message.
func (c *Commander) DeleteMessage(roomID string, messageID int64) error {
	return c.session.Send(protocol.TypeMessageDelete, protocol.MessageDeletePayload{
		RoomID:    roomID,
		MessageID: messageID,
	})
}

// SetTyping reports this client's typing state for a room.
func (c *Commander) SetTyping(roomID string, typing bool) error {
	return c.session.Send(protocol.TypeTypingSet, protocol.TypingSetPayload{
		RoomID: roomID,
		Typing: typing,
	})
}

// MoveCursor positions this client's collaborative cursor within a room.
func (c *Commander) MoveCursor(roomID string, r model.CursorRange) error {
	return c.session.Send(protocol.TypeCursorMove, protocol.CursorPayload{
		RoomID: roomID,
		Start:  r.Start,
		End:    r.End,
	})
}

// JoinCall joins the call in a room. Joining while already in another room's
// call leaves that call first; one call at a time.
func (c *Commander) JoinCall(roomID string) error {
	if prev := c.subs.ActiveCall(); prev != "" && prev != roomID {
		if err := c.session.Send(protocol.TypeCallLeave, protocol.RoomRef{RoomID: prev}); err != nil {
			return err
		}
	}
	c.subs.SetActiveCall(roomID)
	return c.session.Send(protocol.TypeCallJoin, protocol.RoomRef{RoomID: roomID})
}

// LeaveCall leaves the active call. No-op when not in one.
func (c *Commander) LeaveCall() error {
	roomID := c.subs.ActiveCall()
	if roomID == "" {
		return nil
	}
	c.subs.ClearActiveCall()
	return c.session.Send(protocol.TypeCallLeave, protocol.RoomRef{RoomID: roomID})
}

// Signal relays WebRTC signaling to another participant of the active call.
// Without active call membership the signal is dropped.
func (c *Commander) Signal(toUserID int64, kind, body string) error {
	roomID := c.subs.ActiveCall()
	if roomID == "" {
		c.logger.Debug("dropping call signal without active call", "kind", kind, "to", toUserID)
		return nil
	}
	return c.session.Send(protocol.TypeCallSignal, protocol.CallSignalPayload{
		RoomID:   roomID,
		ToUserID: toUserID,
		Kind:     kind,
		Body:     body,
	})
}
