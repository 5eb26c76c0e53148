// Package plugin implements the composition core (spec §4.7): the
// alternative to subclassing an actor's behavior onto it, a plugin
// contributes a context fragment, methods, middleware, and hooks that are
// composed together at registration time.
//
// Following the optional-capability split the teacher uses for auth
// providers (every AuthProvider implements the base interface; only OIDC
// providers also implement OIDCFlowProvider, and callers type-assert for
// it), Plugin here is the minimal required contract and the rest — Setup,
// OnFetch, Middleware, Methods, InternalMethods, SkipProps — are optional
// interfaces a plugin implements only if it needs them.
package plugin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/arkeep-io/actorrpc/internal/surface"
)

// InitContext is passed to Init: the only plugin-visible state before any
// plugin context exists yet.
type InitContext struct {
	Ctx context.Context
	Env map[string]string
}

// Plugin is the minimal contract every plugin satisfies: an id and an Init
// hook returning the context fragment merged into the composed `$`.
type Plugin interface {
	Name() string
	Init(ic *InitContext) (any, error)
}

// Setuper is an optional capability: plugins needing post-init cross-plugin
// wiring (spec: "setup(runtimeCtx, allPluginContexts)") implement it.
type Setuper interface {
	Setup(ctx context.Context, allContexts map[string]any) error
}

// OnFetcher is an optional per-request hook, run in plugin registration
// order before the RPC target is dispatched.
type OnFetcher interface {
	OnFetch(r *http.Request, composed *Context) error
}

// MiddlewareProvider contributes server middleware (spec §4.2 shape) to the
// bound target, in plugin registration order.
type MiddlewareProvider interface {
	Middleware() []surface.Middleware
}

// MethodProvider contributes additional RPC-visible methods. Each value in
// the returned map must satisfy the same callable shape BuildSurface
// enforces: func([context.Context,] args...) (result any, err error).
type MethodProvider interface {
	Methods() map[string]any
}

// InternalMethodProvider contributes protocol-private methods, callable but
// excluded from schema output — the same semantics as
// surface.Surface.RegisterInternal.
type InternalMethodProvider interface {
	InternalMethods() map[string]any
}

// SkipPropsProvider extends the reflection skip-set (spec §4.1) with
// plugin-specific names that should never surface even if the actor
// declares them.
type SkipPropsProvider interface {
	SkipProps() []string
}

// Broadcaster abstracts the host's broadcast capability so the composed
// context can expose it without importing the actor host package (which
// would create an import cycle: actorhttp depends on plugin, not the
// reverse).
type Broadcaster interface {
	Broadcast(payload any)
	ConnectionCount() int
}

// Context is the composed `$`. OnFetch hooks receive it as an argument;
// plugin-contributed methods recover it from their context.Context via
// FromContext when the caller attached it with WithContext. Its Values map holds the
// shallow-spread merge of every plugin's Init result, later plugin wins.
type Context struct {
	Ctx     context.Context
	Env     map[string]string
	Request *http.Request
	Broadcaster
	Values map[string]any
}

// Value returns the composed context value contributed under key by
// whichever plugin declared it last, and whether it was present at all.
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// broadcastPayload mirrors the teacher's JSON-or-verbatim broadcast framing
// for hub messages: strings are sent as-is, everything else is marshaled.
func broadcastPayload(payload any) ([]byte, error) {
	if s, ok := payload.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(payload)
}
