// Package router implements the multi-actor gateway (spec §6): URL path
// /<namespace>/<id>/... selects an actor, falling back to a header-provided
// id; the path tail is forwarded to the actor's fetch handler, with an
// optional auth callback and a worker-origin location header.
package router

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ActorLookup resolves a (namespace, id) pair to the http.Handler serving
// that actor instance — typically an actorhttp.Host.Handler(), created
// lazily and cached by the caller.
type ActorLookup func(namespace, id string) (http.Handler, error)

// AuthCallback optionally rejects a request before it reaches an actor.
// Returning a non-nil error aborts the request with 401.
type AuthCallback func(r *http.Request) error

// IDHeader is the header a client may set instead of embedding the actor id
// in the URL path (spec §6: "falls back to header-provided id").
const IDHeader = "X-Actor-Id"

// OriginHeader carries the gateway process's identity on every forwarded
// request, so an actor can learn which worker routed the call (spec §6
// "worker-origin location header").
const OriginHeader = "X-Actor-Origin"

// Config configures a Gateway.
type Config struct {
	Lookup ActorLookup
	Auth   AuthCallback
	Logger *zap.Logger
}

// Gateway is the chi-routed multi-actor frontend.
type Gateway struct {
	cfg    Config
	origin string
	router http.Handler
}

// New builds a Gateway. origin is resolved once from os.Hostname, falling
// back to "unknown" exactly like the teacher's agent registration path
// (agent/internal/connection/manager.go register()).
func New(cfg Config) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	g := &Gateway{cfg: cfg, origin: hostname}
	r := chi.NewRouter()
	r.HandleFunc("/*", g.route)
	g.router = r
	return g
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) { g.router.ServeHTTP(w, r) }

func (g *Gateway) route(w http.ResponseWriter, r *http.Request) {
	if g.cfg.Auth != nil {
		if err := g.cfg.Auth(r); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	namespace, id, tail := splitActorPath(r.URL.Path)
	if id == "" {
		id = r.Header.Get(IDHeader)
	}
	if namespace == "" || id == "" {
		http.Error(w, "actor namespace/id required", http.StatusBadRequest)
		return
	}

	handler, err := g.cfg.Lookup(namespace, id)
	if err != nil {
		g.cfg.Logger.Warn("actor lookup failed", zap.String("namespace", namespace), zap.String("id", id), zap.Error(err))
		http.Error(w, "actor not found", http.StatusNotFound)
		return
	}

	r = forwardedRequest(r, tail)
	r.Header.Set(OriginHeader, g.origin)

	handler.ServeHTTP(w, r)
}

// splitActorPath parses /<namespace>/<id>/<tail...> into its three parts.
// Either the id segment or the whole tail may be empty — an empty id falls
// back to the header-provided id (spec §6), and a missing tail forwards to
// the actor's root.
func splitActorPath(path string) (namespace, id, tail string) {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) > 0 {
		namespace = parts[0]
	}
	if len(parts) > 1 {
		id = parts[1]
	}
	if len(parts) > 2 {
		tail = parts[2]
	}
	return namespace, id, tail
}

// forwardedRequest rewrites the request path to the actor-relative tail
// (spec §6: "path tail forwarded to the actor's fetch"), preserving query
// parameters and the original method/body.
func forwardedRequest(r *http.Request, tail string) *http.Request {
	path := "/" + strings.TrimPrefix(tail, "/")
	clone := r.Clone(r.Context())
	clone.URL.Path = path
	clone.RequestURI = ""
	return clone
}
