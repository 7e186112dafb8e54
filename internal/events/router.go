package events

import (
	"log/slog"
	"sync"

	"github.com/parley-im/parley-go/internal/protocol"
)

// Handler processes one dispatched frame.
type Handler func(protocol.Frame)

// ListenerID identifies a registered listener for removal.
type ListenerID int64

type listener struct {
	id ListenerID
	fn Handler
}

// Stats contains dispatch counters.
type Stats struct {
	Received   int64
	Dispatched int64
	Unknown    int64
}

// Router dispatches inbound frames to registered listeners.
type Router struct {
	logger *slog.Logger

	mu        sync.RWMutex
	nextID    ListenerID
	exact     map[string][]listener
	namespace map[string][]listener
	global    []listener
	known     map[string]struct{}

	statsMu sync.Mutex
	stats   Stats
}

// NewRouter creates an empty Router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:    logger,
		exact:     make(map[string][]listener),
		namespace: make(map[string][]listener),
		known:     knownTypes(),
	}
}

// On registers a listener for one exact frame type.
func (r *Router) On(frameType string, fn Handler) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.exact[frameType] = append(r.exact[frameType], listener{id: r.nextID, fn: fn})
	return r.nextID
}

// OnNamespace registers a listener for every frame type sharing a namespace
// prefix (e.g. "room" matches "room.subscribed" and "room.denied").
func (r *Router) OnNamespace(ns string, fn Handler) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.namespace[ns] = append(r.namespace[ns], listener{id: r.nextID, fn: fn})
	return r.nextID
}

// OnAll registers a listener for every frame.
func (r *Router) OnAll(fn Handler) ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.global = append(r.global, listener{id: r.nextID, fn: fn})
	return r.nextID
}

// Off removes a listener by id. Removing an unknown id is a no-op. A removal
// during dispatch takes effect on the next dispatch pass.
func (r *Router) Off(id ListenerID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, ls := range r.exact {
		if filtered, found := remove(ls, id); found {
			r.exact[key] = filtered
			return
		}
	}
	for key, ls := range r.namespace {
		if filtered, found := remove(ls, id); found {
			r.namespace[key] = filtered
			return
		}
	}
	if filtered, found := remove(r.global, id); found {
		r.global = filtered
	}
}

// Dispatch routes one frame. Listener lists are snapshotted under the lock
// and invoked outside it, so handlers may register or remove listeners
// without invalidating the current pass.
func (r *Router) Dispatch(f protocol.Frame) {
	r.mu.RLock()
	_, recognized := r.known[f.Type]
	targets := make([]listener, 0, 8)
	// Unknown types still reach wildcard listeners, never the exact table.
	if recognized {
		targets = append(targets, r.exact[f.Type]...)
	}
	targets = append(targets, r.namespace[f.Namespace()]...)
	targets = append(targets, r.global...)
	r.mu.RUnlock()

	r.statsMu.Lock()
	r.stats.Received++
	if recognized {
		r.stats.Dispatched++
	} else {
		r.stats.Unknown++
	}
	r.statsMu.Unlock()

	if !recognized {
		r.logger.Debug("unknown frame type, wildcard listeners only", "type", f.Type)
	}

	for _, l := range targets {
		l.fn(f)
	}
}

// Stats returns a copy of the dispatch counters.
func (r *Router) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func remove(ls []listener, id ListenerID) ([]listener, bool) {
	for i, l := range ls {
		if l.id == id {
			out := make([]listener, 0, len(ls)-1)
			out = append(out, ls[:i]...)
			out = append(out, ls[i+1:]...)
			return out, true
		}
	}
	return ls, false
}

// knownTypes is the set of inbound frame types the router recognizes.
// Anything outside this set reaches wildcard listeners only.
func knownTypes() map[string]struct{} {
	types := []string{
		protocol.TypeAuthSuccess,
		protocol.TypeAuthError,
		protocol.TypePong,
		protocol.TypeSubscribed,
		protocol.TypeUnsubscribed,
		protocol.TypeSubscribeDenied,
		protocol.TypeMessageCreated,
		protocol.TypeMessageUpdated,
		protocol.TypeMessageDeleted,
		protocol.TypeTypingChanged,
		protocol.TypePresenceJoined,
		protocol.TypePresenceLeft,
		protocol.TypePresenceOnline,
		protocol.TypePresenceOffline,
		protocol.TypeCursorChanged,
		protocol.TypeContentChanged,
		protocol.TypeCallRoster,
		protocol.TypeCallSignal,
		protocol.TypeNotifyMessage,
		protocol.TypeError,
	}

	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}
