package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/parley-im/parley-go/internal/auth"
	"github.com/parley-im/parley-go/internal/metrics"
	"github.com/parley-im/parley-go/internal/protocol"
	"github.com/parley-im/parley-go/internal/transport"
)

// FrameSink receives every inbound frame after lifecycle handling,
// typically the Event Router's Dispatch method.
type FrameSink func(protocol.Frame)

// Manager owns the connection lifecycle, the heartbeat, the presence lease,
// reconnection, and the pending-command queue.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	sink   FrameSink

	ops      chan func()
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	// Mirrors of loop-owned state for concurrent readers.
	stateAtomic   atomic.Int32
	identityMu    sync.RWMutex
	userID        int64
	onlineUserIDs []int64

	// Listener registration.
	listenerMu      sync.RWMutex
	stateListeners  []func(StateChange)
	authedListeners []func()

	// Everything below is owned by the run loop. No locking.
	state        State
	sock         transport.Socket
	cred         auth.Credential
	explicit     bool
	attempts     int
	pending      [][]byte
	lastPong     time.Time
	heartbeat    *time.Ticker
	lease        *time.Ticker
	reconnect    *time.Timer
	reconnectDue bool
}

// NewManager creates a session Manager.
func NewManager(cfg Config, sink FrameSink, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	if sink == nil {
		sink = func(protocol.Frame) {}
	}

	return &Manager{
		cfg:    cfg,
		logger: logger,
		sink:   sink,
		ops:    make(chan func(), 64),
		done:   make(chan struct{}),
	}
}

// Start launches the run loop. It does not connect; call Connect.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("session manager started", "url", m.cfg.URL)
	return nil
}

// Stop disconnects and shuts down the run loop.
func (m *Manager) Stop(ctx context.Context) error {
	m.Disconnect()

	if m.cancel != nil {
		m.cancel()
	}
	m.stopOnce.Do(func() { close(m.done) })

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		m.logger.Warn("session shutdown timeout")
	}

	m.logger.Info("session manager stopped")
	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.stateAtomic.Load())
}

// UserID returns the authenticated user's id (0 before authentication).
func (m *Manager) UserID() int64 {
	m.identityMu.RLock()
	defer m.identityMu.RUnlock()
	return m.userID
}

// OnlineUserIDs returns the global online set from the auth handshake.
func (m *Manager) OnlineUserIDs() []int64 {
	m.identityMu.RLock()
	defer m.identityMu.RUnlock()
	out := make([]int64, len(m.onlineUserIDs))
	copy(out, m.onlineUserIDs)
	return out
}

// OnStateChange registers a lifecycle transition listener. Listeners run on
// the loop and must not block.
func (m *Manager) OnStateChange(fn func(StateChange)) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.stateListeners = append(m.stateListeners, fn)
}

// OnAuthenticated registers a hook fired after every successful auth,
// including reconnects. Used for subscription replay.
func (m *Manager) OnAuthenticated(fn func()) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.authedListeners = append(m.authedListeners, fn)
}

// Connect opens a transport and begins authentication with the credential.
func (m *Manager) Connect(cred auth.Credential) error {
	return m.post(func() {
		if m.state == StateConnecting || m.state == StateAuthenticating || m.state == StateAuthenticated {
			m.logger.Debug("connect ignored, session already open", "state", m.state)
			return
		}
		m.cred = cred
		m.explicit = false
		m.attempts = 0
		m.dial()
	})
}

// Disconnect terminates the session. Idempotent; suppresses auto-reconnect,
// stops all timers, and clears queued commands.
func (m *Manager) Disconnect() {
	m.post(func() {
		m.explicit = true
		m.stopTimers()
		m.cancelReconnect()
		m.clearPending()
		if m.sock != nil {
			m.sock.Close()
			m.sock = nil
		}
		m.setState(StateDisconnected, nil)
	})
}

// Send writes an encoded frame if authenticated, otherwise queues it in
// submission order for the flush after authentication.
func (m *Manager) Send(frameType string, payload any) error {
	data, err := protocol.Encode(frameType, payload)
	if err != nil {
		return err
	}

	return m.post(func() {
		if m.state == StateAuthenticated && m.sock != nil {
			m.write(data)
			return
		}
		m.pending = append(m.pending, data)
		metrics.PendingQueueDepth.Set(float64(len(m.pending)))
	})
}

// Wake forces an immediate presence-lease renewal, for runtimes that regain
// foreground visibility or network connectivity after being backgrounded.
func (m *Manager) Wake() {
	m.post(func() {
		if m.state == StateAuthenticated {
			m.renewLease()
		}
	})
}

// post queues an operation onto the run loop.
func (m *Manager) post(fn func()) error {
	select {
	case m.ops <- fn:
		return nil
	case <-m.done:
		return ErrNotStarted
	}
}

// run is the session's single event loop. It exclusively owns all session
// state; every handler runs to completion before the next event.
func (m *Manager) run() {
	defer m.wg.Done()

	for {
		var frames <-chan transport.Inbound
		var errs <-chan error
		if m.sock != nil {
			frames = m.sock.Frames()
			errs = m.sock.Errors()
		}
		var heartbeat, lease <-chan time.Time
		if m.heartbeat != nil {
			heartbeat = m.heartbeat.C
		}
		if m.lease != nil {
			lease = m.lease.C
		}

		select {
		case <-m.done:
			m.stopTimers()
			m.cancelReconnect()
			if m.sock != nil {
				m.sock.Close()
				m.sock = nil
			}
			return

		case op := <-m.ops:
			op()

		case in, ok := <-frames:
			if !ok {
				m.handleTransportError(transport.ErrNotConnected)
				continue
			}
			m.handleFrame(in)

		case err := <-errs:
			m.handleTransportError(err)

		case <-heartbeat:
			m.heartbeatTick()

		case <-lease:
			m.renewLease()
		}
	}
}

// dial opens a fresh transport and authenticates asynchronously.
func (m *Manager) dial() {
	m.setState(StateConnecting, nil)

	sock := transport.New(transport.Config{
		URL:              m.cfg.URL,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		BufferSize:       m.cfg.FrameBuffer,
	}, m.logger)

	go func() {
		err := sock.Connect(m.ctx)
		m.post(func() { m.dialDone(sock, err) })
	}()
}

// dialDone runs on the loop with the dial result.
func (m *Manager) dialDone(sock transport.Socket, err error) {
	if m.explicit {
		// Disconnected while dialing; drop the socket.
		if err == nil {
			sock.Close()
		}
		return
	}

	if err != nil {
		m.logger.Warn("dial failed", "error", err)
		m.scheduleReconnect()
		return
	}

	m.sock = sock

	// Credential travels as the first application frame, never in the URL.
	data, encErr := protocol.Encode(protocol.TypeAuth, protocol.AuthPayload{Token: m.cred.Token()})
	if encErr != nil {
		m.logger.Error("encode auth frame", "error", encErr)
		m.failTransport()
		return
	}
	if sendErr := m.sock.Send(data); sendErr != nil {
		m.logger.Warn("send auth frame", "error", sendErr)
		m.failTransport()
		return
	}
	metrics.FramesSent.Inc()

	m.setState(StateAuthenticating, nil)
}

// handleFrame decodes and processes one inbound frame. Malformed frames are
// dropped, never fatal.
func (m *Manager) handleFrame(in transport.Inbound) {
	frame, err := protocol.Decode(in.Data)
	if err != nil {
		metrics.ParseErrors.Inc()
		m.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	frame.ReceivedAt = in.ReceivedAt
	metrics.FramesReceived.WithLabelValues(frame.Namespace()).Inc()

	switch frame.Type {
	case protocol.TypeAuthSuccess:
		m.handleAuthSuccess(frame)
	case protocol.TypeAuthError:
		m.handleAuthError(frame)
	case protocol.TypePong:
		m.lastPong = time.Now()
	}

	m.sink(frame)
}

func (m *Manager) handleAuthSuccess(frame protocol.Frame) {
	var p protocol.AuthSuccessPayload
	if err := frame.Unmarshal(&p); err != nil {
		metrics.ParseErrors.Inc()
		m.logger.Warn("malformed auth.success", "error", err)
		return
	}

	m.identityMu.Lock()
	m.userID = p.UserID
	m.onlineUserIDs = append(m.onlineUserIDs[:0], p.OnlineUserIDs...)
	m.identityMu.Unlock()

	m.attempts = 0
	m.lastPong = time.Now()
	m.setState(StateAuthenticated, nil)
	m.startTimers()
	m.flushPending()

	m.listenerMu.RLock()
	hooks := append([]func(){}, m.authedListeners...)
	m.listenerMu.RUnlock()
	for _, fn := range hooks {
		fn()
	}

	m.logger.Info("authenticated", "user_id", p.UserID, "online", len(p.OnlineUserIDs))
}

func (m *Manager) handleAuthError(frame protocol.Frame) {
	var p protocol.AuthErrorPayload
	reason := "authentication failed"
	if err := frame.Unmarshal(&p); err == nil && p.Reason != "" {
		reason = p.Reason
	}
	m.logger.Error("authentication rejected", "reason", reason)

	// Fatal for this session: no retry without a fresh credential.
	m.stopTimers()
	if m.sock != nil {
		m.sock.Close()
		m.sock = nil
	}
	m.setState(StateError, ErrAuthRejected)
}

// handleTransportError reacts to a dropped or failing connection.
func (m *Manager) handleTransportError(err error) {
	if m.explicit {
		return
	}
	m.logger.Warn("transport error", "error", err)
	m.failTransport()
}

// failTransport tears down the current socket and schedules a reconnect.
func (m *Manager) failTransport() {
	m.stopTimers()
	if m.sock != nil {
		m.sock.Close()
		m.sock = nil
	}
	m.scheduleReconnect()
}

// heartbeatTick sends a ping and enforces the liveness window: with no pong
// inside twice the heartbeat interval the connection is treated as dead and
// forcibly closed to trigger reconnection.
func (m *Manager) heartbeatTick() {
	if m.state != StateAuthenticated || m.sock == nil {
		return
	}

	if time.Since(m.lastPong) > 2*m.cfg.HeartbeatInterval {
		m.logger.Warn("no pong inside liveness window, closing connection",
			"last_pong", m.lastPong,
			"window", 2*m.cfg.HeartbeatInterval,
		)
		metrics.HeartbeatTimeouts.Inc()
		m.failTransport()
		return
	}

	data, err := protocol.Encode(protocol.TypePing, nil)
	if err == nil {
		m.write(data)
	}
}

// renewLease sends a presence lease renewal frame.
func (m *Manager) renewLease() {
	if m.state != StateAuthenticated || m.sock == nil {
		return
	}
	data, err := protocol.Encode(protocol.TypePresenceRenew, nil)
	if err == nil {
		m.write(data)
	}
}

// scheduleReconnect arms the single backoff timer, or gives up into the
// error state once the attempt cap is exceeded.
func (m *Manager) scheduleReconnect() {
	if m.explicit || m.reconnectDue {
		return
	}

	if m.attempts >= m.cfg.ReconnectMaxAttempts {
		m.logger.Error("giving up after reconnect attempts", "attempts", m.attempts)
		m.setState(StateError, ErrGivenUp)
		return
	}

	delay := m.backoffDelay()
	m.attempts++
	metrics.ReconnectAttempts.Inc()

	m.logger.Info("scheduling reconnect", "attempt", m.attempts, "delay", delay)
	m.setState(StateConnecting, nil)

	m.reconnectDue = true
	m.reconnect = time.AfterFunc(delay, func() {
		m.post(func() {
			m.reconnectDue = false
			// A stale timer after an explicit disconnect is a no-op.
			if m.explicit {
				return
			}
			m.dial()
		})
	})
}

// backoffDelay returns base·2^attempts capped at the configured maximum.
func (m *Manager) backoffDelay() time.Duration {
	delay := m.cfg.ReconnectBaseDelay
	for i := 0; i < m.attempts; i++ {
		delay *= 2
		if delay >= m.cfg.ReconnectMaxDelay {
			return m.cfg.ReconnectMaxDelay
		}
	}
	if delay > m.cfg.ReconnectMaxDelay {
		delay = m.cfg.ReconnectMaxDelay
	}
	return delay
}

func (m *Manager) cancelReconnect() {
	if m.reconnect != nil {
		m.reconnect.Stop()
		m.reconnect = nil
	}
	m.reconnectDue = false
}

// startTimers begins heartbeat and lease renewal. Only runs Authenticated.
func (m *Manager) startTimers() {
	m.stopTimers()
	m.heartbeat = time.NewTicker(m.cfg.HeartbeatInterval)
	m.lease = time.NewTicker(m.cfg.LeaseInterval)
}

func (m *Manager) stopTimers() {
	if m.heartbeat != nil {
		m.heartbeat.Stop()
		m.heartbeat = nil
	}
	if m.lease != nil {
		m.lease.Stop()
		m.lease = nil
	}
}

// flushPending sends queued commands in FIFO submission order.
func (m *Manager) flushPending() {
	for _, data := range m.pending {
		m.write(data)
	}
	m.pending = nil
	metrics.PendingQueueDepth.Set(0)
}

func (m *Manager) clearPending() {
	m.pending = nil
	metrics.PendingQueueDepth.Set(0)
}

// write sends one encoded frame on the current socket.
func (m *Manager) write(data []byte) {
	if m.sock == nil {
		return
	}
	if err := m.sock.Send(data); err != nil {
		m.logger.Warn("send failed", "error", err)
		return
	}
	metrics.FramesSent.Inc()
}

// setState applies a lifecycle transition and notifies listeners.
func (m *Manager) setState(next State, err error) {
	if m.state == next && err == nil {
		return
	}
	prev := m.state
	m.state = next
	m.stateAtomic.Store(int32(next))
	metrics.ConnectionState.Set(float64(next))

	m.logger.Debug("state transition", "from", prev, "to", next)

	m.listenerMu.RLock()
	listeners := append([]func(StateChange){}, m.stateListeners...)
	m.listenerMu.RUnlock()
	change := StateChange{Old: prev, New: next, Err: err}
	for _, fn := range listeners {
		fn(change)
	}
}
