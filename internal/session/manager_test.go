package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-im/parley-go/internal/auth"
	"github.com/parley-im/parley-go/internal/protocol"
	"github.com/parley-im/parley-go/internal/subs"
)

// chatServer is a scripted Parley server for tests. It answers auth frames,
// pongs pings, and records everything it receives.
type chatServer struct {
	t *testing.T

	rejectAuth bool
	mutePongs  bool

	mu       sync.Mutex
	conns    int
	live     []*websocket.Conn
	received []protocol.Frame

	server *httptest.Server
}

func newChatServer(t *testing.T) *chatServer {
	s := &chatServer{t: t}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		s.mu.Lock()
		s.conns++
		s.live = append(s.live, conn)
		s.mu.Unlock()

		s.handle(conn)
	}))

	t.Cleanup(s.server.Close)
	return s
}

func (s *chatServer) handle(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		frame, err := protocol.Decode(data)
		if err != nil {
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, frame)
		s.mu.Unlock()

		switch frame.Type {
		case protocol.TypeAuth:
			if s.rejectAuth {
				s.write(conn, protocol.TypeAuthError, protocol.AuthErrorPayload{Reason: "bad token"})
				return
			}
			s.write(conn, protocol.TypeAuthSuccess, protocol.AuthSuccessPayload{
				UserID:        7,
				OnlineUserIDs: []int64{7, 9},
			})
		case protocol.TypePing:
			if !s.mutePongs {
				s.write(conn, protocol.TypePong, protocol.PongPayload{ServerTime: time.Now().UnixMilli()})
			}
		}
	}
}

func (s *chatServer) write(conn *websocket.Conn, frameType string, payload any) {
	data, err := protocol.Encode(frameType, payload)
	if err != nil {
		s.t.Logf("encode error: %v", err)
		return
	}
	conn.WriteMessage(websocket.TextMessage, data)
}

func (s *chatServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *chatServer) frames() []protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Frame, len(s.received))
	copy(out, s.received)
	return out
}

// closeClientConnections kills every live websocket connection server-side.
// httptest's CloseClientConnections stops tracking hijacked connections, so
// the scripted server keeps its own list.
func (s *chatServer) closeClientConnections() {
	s.mu.Lock()
	conns := append([]*websocket.Conn{}, s.live...)
	s.live = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (s *chatServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func testCred(t *testing.T) auth.Credential {
	t.Helper()
	cred, err := auth.NewCredential("tok-test-123")
	if err != nil {
		t.Fatal(err)
	}
	return cred
}

func testManagerConfig(url string) Config {
	return Config{
		URL:                  url,
		HeartbeatInterval:    100 * time.Millisecond,
		LeaseInterval:        time.Hour, // quiet unless a test needs it
		ReconnectBaseDelay:   20 * time.Millisecond,
		ReconnectMaxDelay:    100 * time.Millisecond,
		ReconnectMaxAttempts: 3,
		WriteTimeout:         time.Second,
		FrameBuffer:          100,
	}
}

func waitForState(t *testing.T, m *Manager, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if m.State() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for state %v, at %v", want, m.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManager_ConnectAuthenticates(t *testing.T) {
	srv := newChatServer(t)

	m := NewManager(testManagerConfig(srv.url()), nil, nil)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Stop(context.Background())

	var transitions []State
	var mu sync.Mutex
	m.OnStateChange(func(c StateChange) {
		mu.Lock()
		transitions = append(transitions, c.New)
		mu.Unlock()
	})

	if err := m.Connect(testCred(t)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	waitForState(t, m, StateAuthenticated)

	if got := m.UserID(); got != 7 {
		t.Errorf("UserID() = %d, want 7", got)
	}
	if got := m.OnlineUserIDs(); len(got) != 2 {
		t.Errorf("OnlineUserIDs() = %v", got)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []State{StateConnecting, StateAuthenticating, StateAuthenticated}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %v, want %v", i, transitions[i], want[i])
		}
	}

	// The credential traveled as the first application frame.
	frames := srv.frames()
	if len(frames) == 0 || frames[0].Type != protocol.TypeAuth {
		t.Fatalf("first frame = %+v, want auth", frames)
	}
	var p protocol.AuthPayload
	if err := frames[0].Unmarshal(&p); err != nil || p.Token != "tok-test-123" {
		t.Errorf("auth payload = %+v, err=%v", p, err)
	}
}

func TestManager_AuthRejectedIsFatal(t *testing.T) {
	srv := newChatServer(t)
	srv.rejectAuth = true

	m := NewManager(testManagerConfig(srv.url()), nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	var gotErr error
	var mu sync.Mutex
	m.OnStateChange(func(c StateChange) {
		if c.New == StateError {
			mu.Lock()
			gotErr = c.Err
			mu.Unlock()
		}
	})

	m.Connect(testCred(t))
	waitForState(t, m, StateError)

	mu.Lock()
	defer mu.Unlock()
	if gotErr != ErrAuthRejected {
		t.Errorf("error = %v, want ErrAuthRejected", gotErr)
	}

	// No retry without a fresh credential.
	time.Sleep(200 * time.Millisecond)
	if srv.connections() != 1 {
		t.Errorf("connections = %d, want 1 (no auto-retry after auth error)", srv.connections())
	}
}

func TestManager_QueueFlushedFIFO(t *testing.T) {
	srv := newChatServer(t)

	m := NewManager(testManagerConfig(srv.url()), nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	// Queue before connecting: not dropped, order preserved.
	for _, content := range []string{"one", "two", "three"} {
		err := m.Send(protocol.TypeMessageSend, protocol.MessageSendPayload{
			RoomID:  "room-1",
			Content: content,
		})
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)
	time.Sleep(100 * time.Millisecond)

	var sends []string
	for _, f := range srv.frames() {
		if f.Type == protocol.TypeMessageSend {
			var p protocol.MessageSendPayload
			if err := f.Unmarshal(&p); err == nil {
				sends = append(sends, p.Content)
			}
		}
	}

	want := []string{"one", "two", "three"}
	if len(sends) != len(want) {
		t.Fatalf("sends = %v, want %v", sends, want)
	}
	for i := range want {
		if sends[i] != want[i] {
			t.Errorf("sends[%d] = %q, want %q", i, sends[i], want[i])
		}
	}
}

func TestManager_ReconnectAfterDrop(t *testing.T) {
	srv := newChatServer(t)

	m := NewManager(testManagerConfig(srv.url()), nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	var authedCount int
	var mu sync.Mutex
	m.OnAuthenticated(func() {
		mu.Lock()
		authedCount++
		mu.Unlock()
	})

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)

	// Kill every server-side connection; the client must come back.
	srv.closeClientConnections()

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		n := authedCount
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for re-auth, authedCount=%d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if m.State() != StateAuthenticated {
		t.Errorf("state = %v after reconnect, want authenticated", m.State())
	}
	if srv.connections() < 2 {
		t.Errorf("connections = %d, want >= 2", srv.connections())
	}
}

func TestManager_ReconnectReplaysSubscriptions(t *testing.T) {
	srv := newChatServer(t)

	m := NewManager(testManagerConfig(srv.url()), nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	registry := subs.NewRegistry(m, nil)
	m.OnAuthenticated(registry.Replay)

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)

	registry.Subscribe("room-a")
	registry.Subscribe("room-b")
	time.Sleep(100 * time.Millisecond) // let the server read the initial subscribes

	srv.closeClientConnections()

	// Wait until the replayed subscriptions arrive on the new connection.
	deadline := time.After(3 * time.Second)
	for {
		subsByRoom := map[string]int{}
		for _, f := range srv.frames() {
			if f.Type == protocol.TypeSubscribe {
				var ref protocol.RoomRef
				if err := f.Unmarshal(&ref); err == nil {
					subsByRoom[ref.RoomID]++
				}
			}
		}
		// One initial subscribe plus one replay per room, nothing extra.
		if subsByRoom["room-a"] == 2 && subsByRoom["room-b"] == 2 {
			if len(subsByRoom) != 2 {
				t.Fatalf("subscribed rooms = %v, want only room-a and room-b", subsByRoom)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for replay, subscribes=%v", subsByRoom)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManager_BackoffCapGivesUp(t *testing.T) {
	// Nothing listens here; every dial fails immediately.
	cfg := testManagerConfig("ws://127.0.0.1:1")
	cfg.ReconnectMaxAttempts = 3

	m := NewManager(cfg, nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	var gotErr error
	var mu sync.Mutex
	m.OnStateChange(func(c StateChange) {
		if c.New == StateError {
			mu.Lock()
			gotErr = c.Err
			mu.Unlock()
		}
	})

	m.Connect(testCred(t))
	waitForState(t, m, StateError)

	mu.Lock()
	defer mu.Unlock()
	if gotErr != ErrGivenUp {
		t.Errorf("error = %v, want ErrGivenUp", gotErr)
	}
}

func TestManager_HeartbeatTimeoutForcesReconnect(t *testing.T) {
	srv := newChatServer(t)
	srv.mutePongs = true

	m := NewManager(testManagerConfig(srv.url()), nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)

	// With pongs muted the liveness window (2× heartbeat) lapses and the
	// client drops the connection itself, then dials again.
	deadline := time.After(3 * time.Second)
	for srv.connections() < 2 {
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for liveness reconnect, connections=%d", srv.connections())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManager_DisconnectIsExplicit(t *testing.T) {
	srv := newChatServer(t)

	m := NewManager(testManagerConfig(srv.url()), nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)

	m.Disconnect()
	waitForState(t, m, StateDisconnected)

	// No reconnect after an explicit disconnect.
	time.Sleep(300 * time.Millisecond)
	if srv.connections() != 1 {
		t.Errorf("connections = %d, want 1 after explicit disconnect", srv.connections())
	}
	if m.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", m.State())
	}
}

func TestManager_DisconnectIdempotent(t *testing.T) {
	srv := newChatServer(t)

	m := NewManager(testManagerConfig(srv.url()), nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)

	m.Disconnect()
	m.Disconnect()
	m.Disconnect()
	waitForState(t, m, StateDisconnected)
}

func TestManager_LeaseRenewalAndWake(t *testing.T) {
	srv := newChatServer(t)

	cfg := testManagerConfig(srv.url())
	cfg.LeaseInterval = 80 * time.Millisecond

	m := NewManager(cfg, nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)

	// Periodic renewal.
	time.Sleep(250 * time.Millisecond)

	renewals := 0
	for _, f := range srv.frames() {
		if f.Type == protocol.TypePresenceRenew {
			renewals++
		}
	}
	if renewals < 2 {
		t.Errorf("renewals = %d, want >= 2", renewals)
	}

	// Wake fires one immediately.
	before := renewals
	m.Wake()
	time.Sleep(50 * time.Millisecond)

	renewals = 0
	for _, f := range srv.frames() {
		if f.Type == protocol.TypePresenceRenew {
			renewals++
		}
	}
	if renewals <= before {
		t.Errorf("renewals = %d after Wake, want > %d", renewals, before)
	}
}

func TestManager_FramesReachSink(t *testing.T) {
	srv := newChatServer(t)

	var mu sync.Mutex
	var types []string
	sink := func(f protocol.Frame) {
		mu.Lock()
		types = append(types, f.Type)
		mu.Unlock()
	}

	m := NewManager(testManagerConfig(srv.url()), sink, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, ty := range types {
		if ty == protocol.TypeAuthSuccess {
			found = true
		}
	}
	if !found {
		t.Errorf("sink types = %v, want auth.success present", types)
	}
}

func TestManager_StateString(t *testing.T) {
	cases := map[State]string{
		StateDisconnected:   "disconnected",
		StateConnecting:     "connecting",
		StateAuthenticating: "authenticating",
		StateAuthenticated:  "authenticated",
		StateError:          "error",
		State(99):           "unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}

// Regression guard for raw junk on the wire: the manager must keep running.
func TestManager_MalformedFrameDropped(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := protocol.Decode(data)
			if err != nil || frame.Type != protocol.TypeAuth {
				continue
			}
			// Garbage first, then a valid auth.success.
			conn.WriteMessage(websocket.TextMessage, []byte(`{{{not json`))
			conn.WriteMessage(websocket.TextMessage, []byte(`{"payload":{}}`))

			payload, _ := json.Marshal(protocol.AuthSuccessPayload{UserID: 7})
			ok, _ := json.Marshal(protocol.Frame{Type: protocol.TypeAuthSuccess, Payload: payload})
			conn.WriteMessage(websocket.TextMessage, ok)
		}
	}))
	defer server.Close()

	m := NewManager(testManagerConfig("ws"+strings.TrimPrefix(server.URL, "http")), nil, nil)
	m.Start(context.Background())
	defer m.Stop(context.Background())

	m.Connect(testCred(t))
	waitForState(t, m, StateAuthenticated)
}
