// Package transportreg implements the process-local, non-persistent
// transport registry described in spec §4.4: a map from transportId to the
// live Transport object currently serving it.
//
// The registry is intentionally the only place transport continuity lives.
// Everything else — which socket this is, what state it's in — is carried
// in the durable wsstate.Attachment instead, so a missing registry entry
// (a "cold wake") is a normal condition to be rebuilt, never an error.
// This mirrors the in-memory, reconnect-tolerant registry pattern in the
// teacher's server/internal/agentmanager/manager.go, scoped down from
// agent connections to WebSocket transports.
package transportreg

import (
	"sync"

	"go.uber.org/zap"
)

// Transport is the minimal contract the registry needs: an identity. Any
// richer read/write behaviour lives on the concrete type; transportreg only
// needs enough to track liveness and hand the object back out on Get.
type Transport interface {
	ID() string
}

// Registry is the in-memory transportId -> Transport map for one actor
// instance. Safe for concurrent use; a single actor's HTTP/WS handlers and
// its background goroutines may all touch it concurrently.
type Registry struct {
	mu        sync.RWMutex
	transports map[string]Transport
	logger    *zap.Logger
}

// New creates an empty Registry.
func New(logger *zap.Logger) *Registry {
	return &Registry{
		transports: make(map[string]Transport),
		logger:     logger.Named("transportreg"),
	}
}

// Register adds t under its own ID, replacing any previous entry with that
// ID (the same situation agentmanager.Register logs as "replacing existing
// agent connection" — here it is the same situation: a reconnect racing
// ahead of this registry noticing the old entry died).
func (r *Registry) Register(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.transports[t.ID()]; exists {
		r.logger.Warn("replacing existing transport registration", zap.String("transport_id", t.ID()))
	}
	r.transports[t.ID()] = t
}

// Get looks up the live Transport for id. ok is false on a cold wake: the
// registry was wiped by hibernation and the caller must rebuild the
// transport from the socket's surviving attachment (spec §4.3/§4.4).
func (r *Registry) Get(id string) (Transport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transports[id]
	return t, ok
}

// Remove deletes id from the registry. Called when a socket closes or
// errors (spec §4.3 failure semantics).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.transports, id)
}

// Len reports the number of live transports — used by the actor host's
// connectionCount (spec §4.7 base context) and metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transports)
}

// Each iterates a snapshot of the currently registered transports, matching
// the hub's copy-then-iterate-outside-the-lock pattern in
// server/internal/websocket/hub.go Publish — used for broadcast.
func (r *Registry) Each(fn func(Transport)) {
	r.mu.RLock()
	snapshot := make([]Transport, 0, len(r.transports))
	for _, t := range r.transports {
		snapshot = append(snapshot, t)
	}
	r.mu.RUnlock()

	for _, t := range snapshot {
		fn(t)
	}
}
