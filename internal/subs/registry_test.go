package subs

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/parley-im/parley-go/internal/events"
	"github.com/parley-im/parley-go/internal/protocol"
)

type fakeConn struct {
	mu   sync.Mutex
	sent []sentFrame
	fail error
}

type sentFrame struct {
	Type    string
	Payload any
}

func (c *fakeConn) Send(frameType string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, sentFrame{Type: frameType, Payload: payload})
	return nil
}

func (c *fakeConn) frames() []sentFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentFrame, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

func inbound(t *testing.T, frameType string, payload any) protocol.Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return protocol.Frame{Type: frameType, Payload: data}
}

func TestRegistry_SubscribeIdempotent(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)

	if err := r.Subscribe("room-1"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := r.Subscribe("room-1"); err != nil {
		t.Fatalf("second Subscribe failed: %v", err)
	}

	if got := len(conn.frames()); got != 1 {
		t.Errorf("sent %d frames, want 1", got)
	}
	if !r.IsSubscribed("room-1") {
		t.Error("room-1 should be subscribed")
	}
	if s, _ := r.Status("room-1"); s != StatusPending {
		t.Errorf("status = %v, want pending", s)
	}
}

func TestRegistry_UnsubscribeIdempotent(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)

	r.Subscribe("room-1")
	conn.reset()

	if err := r.Unsubscribe("room-1"); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if err := r.Unsubscribe("room-1"); err != nil {
		t.Fatalf("second Unsubscribe failed: %v", err)
	}

	frames := conn.frames()
	if len(frames) != 1 || frames[0].Type != protocol.TypeUnsubscribe {
		t.Errorf("frames = %+v, want one unsubscribe", frames)
	}
	if r.IsSubscribed("room-1") {
		t.Error("room-1 should be gone")
	}
}

func TestRegistry_UnsubscribeLeavesActiveCall(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)

	r.Subscribe("room-1")
	r.SetActiveCall("room-1")
	conn.reset()

	r.Unsubscribe("room-1")

	frames := conn.frames()
	if len(frames) != 2 {
		t.Fatalf("sent %d frames, want 2", len(frames))
	}
	if frames[0].Type != protocol.TypeCallLeave {
		t.Errorf("frames[0] = %s, want call.leave", frames[0].Type)
	}
	if frames[1].Type != protocol.TypeUnsubscribe {
		t.Errorf("frames[1] = %s, want room.unsubscribe", frames[1].Type)
	}
	if r.ActiveCall() != "" {
		t.Errorf("ActiveCall() = %q, want empty", r.ActiveCall())
	}
}

func TestRegistry_ServerConfirmation(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)
	router := events.NewRouter(nil)
	r.Bind(router)

	r.Subscribe("room-1")

	router.Dispatch(inbound(t, protocol.TypeSubscribed, protocol.SubscribedPayload{RoomID: "room-1"}))

	if s, ok := r.Status("room-1"); !ok || s != StatusConfirmed {
		t.Errorf("status = %v ok=%v, want confirmed", s, ok)
	}
}

func TestRegistry_ServerDenialCorrectsOptimism(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)
	router := events.NewRouter(nil)
	r.Bind(router)

	r.Subscribe("room-1")
	r.SetActiveCall("room-1")

	// Optimistically subscribed until the server says otherwise.
	if !r.IsSubscribed("room-1") {
		t.Fatal("room-1 should be optimistically subscribed")
	}

	router.Dispatch(inbound(t, protocol.TypeSubscribeDenied, protocol.SubscribeDeniedPayload{
		RoomID: "room-1",
		Reason: "not a member",
	}))

	if r.IsSubscribed("room-1") {
		t.Error("denial should remove room-1")
	}
	if r.ActiveCall() != "" {
		t.Error("denial should clear the active call in that room")
	}
}

func TestRegistry_ServerInitiatedUnsubscribe(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)
	router := events.NewRouter(nil)
	r.Bind(router)

	r.Subscribe("room-1")
	router.Dispatch(inbound(t, protocol.TypeUnsubscribed, protocol.RoomRef{RoomID: "room-1"}))

	if r.IsSubscribed("room-1") {
		t.Error("room-1 should be removed on server unsubscribe")
	}
}

func TestRegistry_ReplaySendsEverySubscription(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)

	r.Subscribe("room-b")
	r.Subscribe("room-a")
	conn.reset()

	r.Replay()

	frames := conn.frames()
	if len(frames) != 2 {
		t.Fatalf("sent %d frames, want 2", len(frames))
	}
	// Sorted order keeps replay deterministic.
	for i, want := range []string{"room-a", "room-b"} {
		ref, ok := frames[i].Payload.(protocol.RoomRef)
		if !ok || frames[i].Type != protocol.TypeSubscribe || ref.RoomID != want {
			t.Errorf("frames[%d] = %+v, want subscribe %s", i, frames[i], want)
		}
	}

	// Replayed rooms are pending again until reconfirmed.
	if s, _ := r.Status("room-a"); s != StatusPending {
		t.Errorf("status after replay = %v, want pending", s)
	}
}

func TestRegistry_ReplayRejoinsActiveCall(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)

	r.Subscribe("room-1")
	r.SetActiveCall("room-1")
	conn.reset()

	r.Replay()

	frames := conn.frames()
	if len(frames) != 2 {
		t.Fatalf("sent %d frames, want 2", len(frames))
	}
	if frames[1].Type != protocol.TypeCallJoin {
		t.Errorf("frames[1] = %s, want call.join", frames[1].Type)
	}
}

func TestRegistry_Clear(t *testing.T) {
	conn := &fakeConn{}
	r := NewRegistry(conn, nil)

	r.Subscribe("room-1")
	r.Subscribe("room-2")
	r.SetActiveCall("room-1")
	conn.reset()

	r.Clear()

	if got := len(conn.frames()); got != 0 {
		t.Errorf("Clear sent %d frames, want 0", got)
	}
	if len(r.Rooms()) != 0 {
		t.Errorf("Rooms() = %v, want empty", r.Rooms())
	}
	if r.ActiveCall() != "" {
		t.Error("ActiveCall should be cleared")
	}
}
