package plugin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/arkeep-io/actorrpc/internal/surface"
)

// ctxKey is the private key a composed Context is stashed under so that
// plugin- and user-contributed methods — ordinary surface.Surface entries
// under the hood — can recover it via FromContext without changing the
// standard func(context.Context, args...) (result, err) method shape.
type ctxKey struct{}

// WithContext attaches a composed Context to ctx.
func WithContext(ctx context.Context, c *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext recovers the composed Context a plugin or user method was
// dispatched with, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Context)
	return c, ok
}

// Registry is the result of composing a tuple of plugins (spec §4.7): a
// built surface ready for surface.Bind, the plugins' ordered middleware,
// their merged skip-set additions, and everything needed to build a
// per-request composed Context.
type Registry struct {
	plugins    []Plugin
	surface    *surface.Surface
	middleware []surface.Middleware
	skip       map[string]bool
	values      map[string]any // shallow-spread merge, later plugin wins
	perPlugin   map[string]any // each plugin's own Init result, for Setup
	onFetch     []OnFetcher
	broadcaster Broadcaster
}

// Compose runs Init on every plugin in order, merges their context
// fragments, runs Setup for any Setuper, and assembles the composed
// method surface from both the plugins' contributed methods and the
// user-supplied top-level method map (the "(b) a method map" half of spec
// §4.7's plugin tuple configuration).
func Compose(ic *InitContext, broadcaster Broadcaster, methodMap map[string]any, plugins ...Plugin) (*Registry, error) {
	r := &Registry{
		plugins:   plugins,
		surface:   &surface.Surface{Methods: map[string]*surface.Method{}, Namespaces: map[string]*surface.Namespace{}, Internals: map[string]*surface.Method{}},
		skip:      map[string]bool{},
		values:    map[string]any{},
		perPlugin: map[string]any{},
	}

	for _, p := range plugins {
		fragment, err := p.Init(ic)
		if err != nil {
			return nil, fmt.Errorf("plugin: init %q: %w", p.Name(), err)
		}
		r.perPlugin[p.Name()] = fragment
		mergeFragment(r.values, fragment)

		if mp, ok := p.(MiddlewareProvider); ok {
			r.middleware = append(r.middleware, mp.Middleware()...)
		}
		if sp, ok := p.(SkipPropsProvider); ok {
			for _, name := range sp.SkipProps() {
				r.skip[name] = true
			}
		}
		if of, ok := p.(OnFetcher); ok {
			r.onFetch = append(r.onFetch, of)
		}
	}

	for _, p := range plugins {
		if su, ok := p.(Setuper); ok {
			if err := su.Setup(ic.Ctx, r.perPlugin); err != nil {
				return nil, fmt.Errorf("plugin: setup %q: %w", p.Name(), err)
			}
		}
	}

	for name, fn := range methodMap {
		if err := r.surface.RegisterExternal(name, fn); err != nil {
			return nil, fmt.Errorf("plugin: registering method %q: %w", name, err)
		}
	}
	for _, p := range plugins {
		if mp, ok := p.(MethodProvider); ok {
			for name, fn := range mp.Methods() {
				if err := r.surface.RegisterExternal(name, fn); err != nil {
					return nil, fmt.Errorf("plugin: registering %q method %q: %w", p.Name(), name, err)
				}
			}
		}
		if imp, ok := p.(InternalMethodProvider); ok {
			for name, fn := range imp.InternalMethods() {
				if err := r.surface.RegisterInternal(name, fn); err != nil {
					return nil, fmt.Errorf("plugin: registering %q internal method %q: %w", p.Name(), name, err)
				}
			}
		}
	}

	r.broadcaster = broadcaster
	return r, nil
}

// mergeFragment shallow-spreads fragment's keys into dst, later callers
// (later plugins) overwriting earlier keys — spec §4.7: "a later plugin may
// overwrite an earlier plugin's context keys."
func mergeFragment(dst map[string]any, fragment any) {
	if fragment == nil {
		return
	}
	m, ok := fragment.(map[string]any)
	if !ok {
		return
	}
	for k, v := range m {
		dst[k] = v
	}
}

// Surface returns the composed, bindable surface.
func (r *Registry) Surface() *surface.Surface { return r.surface }

// Middleware returns the plugins' contributed middleware in registration
// order.
func (r *Registry) Middleware() []surface.Middleware { return r.middleware }

// SkipSet returns the plugin-declared reflection skip additions, merged
// with surface.BaseSkipSet by the caller.
func (r *Registry) SkipSet() map[string]bool { return r.skip }

// NewRequestContext builds the composed `$` for one inbound request: the
// merged plugin values plus the base capabilities (env, request,
// broadcast, connection count) spec §4.7 names explicitly.
func (r *Registry) NewRequestContext(ctx context.Context, env map[string]string, req *http.Request) *Context {
	return &Context{
		Ctx:         ctx,
		Env:         env,
		Request:     req,
		Broadcaster: r.broadcaster,
		Values:      r.values,
	}
}

// RunOnFetch invokes every OnFetcher hook in plugin registration order,
// stopping at the first error (spec §4.6 step 2: "Invokes onFetch hooks in
// registration order").
func (r *Registry) RunOnFetch(req *http.Request, composed *Context) error {
	for _, of := range r.onFetch {
		if err := of.OnFetch(req, composed); err != nil {
			return err
		}
	}
	return nil
}

// PluginNames returns the composed plugins' names in registration order,
// for diagnostics.
func (r *Registry) PluginNames() []string {
	names := make([]string, 0, len(r.plugins))
	for _, p := range r.plugins {
		names = append(names, p.Name())
	}
	return names
}
