package surface

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/arkeep-io/actorrpc/rpcerr"
)

// Middleware is the explicit hook shape described in spec §4.2/§4.9: a
// plain triple of request/response/error callbacks, run in registration
// order on the way in and the way out. Hooks may block; each is awaited
// (synchronously, on the calling goroutine) before the next runs.
type Middleware interface {
	OnRequest(ctx context.Context, path string, args json.RawMessage) error
	OnResponse(ctx context.Context, path string, result any) error
	OnError(ctx context.Context, path string, err error) error
}

// Target is the bound, callable capability object produced by Bind. It
// satisfies the same Dispatch(path, args) contract the session host expects
// from whatever sits on the other side of a Cap'n Web session — see
// capnwire.Target.
type Target struct {
	surface    *Surface
	middleware []Middleware
}

// Bind wires a built Surface and an ordered middleware chain into a
// dispatchable Target. this is already bound into each Method's reflect.Value
// (methods are obtained via v.Method(i), which Go binds to the receiver at
// creation time), so no separate "this" binding step is required the way a
// dynamic-dispatch host needs one.
func Bind(s *Surface, middleware ...Middleware) *Target {
	return &Target{surface: s, middleware: middleware}
}

// Dispatch resolves path against the bound surface (methods, namespaced
// methods, then internals) and invokes it, running the middleware chain
// around the call exactly as spec §4.2 describes:
//
//  1. onRequest(path, args, ctx) for each middleware, in order.
//  2. await the underlying method.
//  3. on success, onResponse(path, result, ctx) in order.
//  4. on error, onError(path, err, ctx) in order, then rethrow.
func (t *Target) Dispatch(ctx context.Context, path string, args json.RawMessage) (any, error) {
	for _, mw := range t.middleware {
		if err := mw.OnRequest(ctx, path, args); err != nil {
			return t.fail(ctx, path, err)
		}
	}

	m, ok := t.resolve(path)
	if !ok {
		return t.fail(ctx, path, rpcerr.Newf(rpcerr.CodeModuleMissing, "no method bound at path %q", path))
	}

	result, err := m.invoke(ctx, args)
	if err != nil {
		return t.fail(ctx, path, err)
	}

	for _, mw := range t.middleware {
		if err := mw.OnResponse(ctx, path, result); err != nil {
			return t.fail(ctx, path, err)
		}
	}

	return result, nil
}

// fail runs onError for every middleware (in order) and rethrows, matching
// "an exception from a middleware hook propagates exactly like a method
// error, and triggers onError for subsequent middlewares".
func (t *Target) fail(ctx context.Context, path string, err error) (any, error) {
	for _, mw := range t.middleware {
		_ = mw.OnError(ctx, path, err)
	}
	return nil, err
}

// resolve finds the Method whose wire Path equals path: first the flat method
// table, then the namespace named by path's first segment, then the internal
// table (so internal paths remain callable even though RegisterInternal keeps
// them out of the schema).
func (t *Target) resolve(path string) (*Method, bool) {
	for _, m := range t.surface.Methods {
		if m.Path == path {
			return m, true
		}
	}
	if ns, _, ok := strings.Cut(path, "."); ok {
		if n, ok := t.surface.Namespaces[ns]; ok {
			for _, m := range n.Methods {
				if m.Path == path {
					return m, true
				}
			}
		}
	}
	if m, ok := t.surface.Internals[path]; ok {
		return m, true
	}
	return nil, false
}

// Surface exposes the underlying reflected surface, e.g. for schema
// generation (internal/schema walks the same structure).
func (t *Target) Surface() *Surface { return t.surface }

// invoke decodes args (a JSON array) into m's declared parameter types and
// calls the bound function via reflection, converting its (result, error)
// return into Go values.
func (m *Method) invoke(ctx context.Context, args json.RawMessage) (any, error) {
	raw, err := decodeArgsArray(args, m.Params)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.CodeModuleMissing, err)
	}

	in := make([]reflect.Value, 0, len(raw)+1)
	if m.wantsCtx {
		in = append(in, reflect.ValueOf(ctx))
	}
	for i, r := range raw {
		pv := reflect.New(m.argTypes[i])
		if len(r) > 0 {
			if err := json.Unmarshal(r, pv.Interface()); err != nil {
				return nil, rpcerr.Wrap(rpcerr.CodeModuleMissing, fmt.Errorf("decoding argument %d: %w", i, err))
			}
		}
		in = append(in, pv.Elem())
	}

	out := m.fn.Call(in)

	var errVal reflect.Value
	var resultVal reflect.Value
	if m.hasResult {
		resultVal, errVal = out[0], out[1]
	} else {
		errVal = out[0]
	}

	if !errVal.IsNil() {
		return nil, errVal.Interface().(error)
	}
	if !m.hasResult {
		return nil, nil
	}
	return resultVal.Interface(), nil
}

// decodeArgsArray decodes a JSON array of arguments, padding with "null" for
// any arguments the caller omitted so optional trailing parameters still
// zero-value correctly.
func decodeArgsArray(args json.RawMessage, want int) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if len(args) > 0 {
		if err := json.Unmarshal(args, &raw); err != nil {
			return nil, fmt.Errorf("args must be a JSON array: %w", err)
		}
	}
	if len(raw) > want {
		return nil, fmt.Errorf("too many arguments: got %d, want %d", len(raw), want)
	}
	for len(raw) < want {
		raw = append(raw, json.RawMessage("null"))
	}
	return raw, nil
}
