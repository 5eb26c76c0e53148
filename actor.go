// Package actorrpc wraps a capability-based RPC protocol with a
// reflection-based dispatch core, a hibernatable WebSocket session state
// machine, and client/server transports for stateful edge-compute actors.
//
// A user-authored actor embeds Base, declares exported methods and
// namespace fields, and is handed to NewActor to serve HTTP, WebSocket, and
// batch RPC traffic.
package actorrpc

import (
	"go.uber.org/zap"

	"github.com/arkeep-io/actorrpc/capnwire"
	"github.com/arkeep-io/actorrpc/internal/actorhttp"
	"github.com/arkeep-io/actorrpc/internal/session"
	"github.com/arkeep-io/actorrpc/internal/sqlstore"
	"github.com/arkeep-io/actorrpc/internal/surface"
)

// Base is the marker type actors embed so the reflection engine's
// stopPrototype skip-set (Fetch/Alarm/OnMessage/OnClose/OnError) applies
// regardless of whether the embedding type redeclares those names (spec
// §4.1's "stopPrototype" realized as a marker embedded type).
type Base struct{}

func (Base) Fetch() error     { return nil }
func (Base) Alarm() error     { return nil }
func (Base) OnMessage() error { return nil }
func (Base) OnClose() error   { return nil }
func (Base) OnError() error   { return nil }

// Middleware re-exports surface.Middleware so callers never need to import
// the internal package directly.
type Middleware = surface.Middleware

// HostConfig gathers everything needed to stand up one actor instance.
type HostConfig struct {
	// ActorID uniquely identifies this instance, used for its SQLite file
	// name and metrics labels.
	ActorID string
	// Instance is the user-authored actor, a pointer to a struct embedding
	// Base. Its exported methods and namespace fields are walked by
	// BuildSurface.
	Instance any
	// Middleware wraps every RPC call, in the given order, both server and
	// client-analogue hooks (spec §4.2).
	Middleware []Middleware
	// Auth validates the first WebSocket message's token, if non-nil.
	Auth session.AuthValidator
	// ProtocolVersion is echoed on every RPC call reply frame for client-side
	// negotiation (spec §4.10).
	ProtocolVersion int
	// Colo is surfaced in the schema document for datacenter-aware clients.
	Colo string
	// StorageDir, if non-empty, gives the actor a per-instance SQLite store
	// under StorageDir/<ActorID>.db (spec §3's "storage handle").
	StorageDir string
	Logger     *zap.Logger
}

// Actor bundles a built Host with the storage handle (if any) so callers can
// close it on shutdown.
type Actor struct {
	Host  *actorhttp.Host
	Store *sqlstore.Store
}

// NewActor builds the reflected surface over cfg.Instance, opens its store
// (if configured), binds the middleware chain, and returns a ready-to-serve
// Actor (its Host.Handler() is the HTTP entry point).
func NewActor(cfg HostConfig) (*Actor, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s, err := surface.BuildSurface(cfg.Instance, surface.BuildOptions{})
	if err != nil {
		return nil, err
	}

	var store *sqlstore.Store
	if cfg.StorageDir != "" {
		store, err = sqlstore.Open(cfg.ActorID, sqlstore.Config{DataDir: cfg.StorageDir, Logger: logger})
		if err != nil {
			return nil, err
		}
	}

	target := surface.Bind(s, cfg.Middleware...)

	host := actorhttp.NewHost(actorhttp.Config{
		ActorID:         cfg.ActorID,
		Target:          capnwire.Target(target),
		Surface:         s,
		Store:           store,
		Auth:            cfg.Auth,
		ProtocolVersion: cfg.ProtocolVersion,
		Colo:            cfg.Colo,
		Logger:          logger,
	})

	return &Actor{Host: host, Store: store}, nil
}

// Close releases the actor's storage handle, if any.
func (a *Actor) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
