// Package surface implements the reflection engine (spec §4.1) and RPC
// surface binder (spec §4.2): it walks a user-authored actor value and
// builds a callable, middleware-wrapped dispatch table keyed by dotted path.
//
// Go has no prototype chain, so "walk the instance then each prototype up to
// stopPrototype" is realized as: walk the method set of the actor's type
// (Go's own method-set rules already resolve shadowing when an embedding
// type redeclares a method also declared on an embedded type — the direct
// analogue of "first occurrence wins"), then walk exported struct fields
// whose own type exposes at least one qualifying method as namespaces.
package surface

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// errorType and ctxType are cached once for the signature checks below.
var (
	errorType = reflect.TypeOf((*error)(nil)).Elem()
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Method is one admitted, callable entry in the surface.
type Method struct {
	// Name is the Go method name (e.g. "Get"), which also keys the method
	// tables; Path is the dotted path used on the wire (e.g. "users.get" for
	// a namespaced method, "ping" at the root).
	Name   string
	Path   string
	Params int // declared argument count, excluding a leading context.Context

	fn        reflect.Value
	wantsCtx  bool
	argTypes  []reflect.Type
	hasResult bool // false when the method returns only (error)
}

// Namespace groups methods found on a single exported field.
type Namespace struct {
	Name    string
	Methods map[string]*Method
}

// Surface is the result of walking an actor instance: flat method table,
// namespace table, and an internal table of methods that are callable but
// hidden from schema output (spec §3 "Internal-only entries").
type Surface struct {
	Methods    map[string]*Method
	Namespaces map[string]*Namespace
	Internals  map[string]*Method
}

// BaseSkipSet is the set of method names never exposed via the surface or
// schema, regardless of which type in the embedding chain declares them.
// It covers the actor lifecycle hooks named in spec §3; callers
// (plugins) may extend it.
var BaseSkipSet = map[string]bool{
	"Fetch":     true,
	"Alarm":     true,
	"OnMessage": true,
	"OnClose":   true,
	"OnError":   true,
}

// BuildOptions configures a single BuildSurface call.
type BuildOptions struct {
	// Skip extends BaseSkipSet with additional method names to hide, e.g.
	// plugin-declared additions (spec §4.7 skipProps).
	Skip map[string]bool
}

// BuildSurface walks instance (which must be a pointer to a struct so that
// pointer-receiver methods are visible) and partitions its exported,
// method-shaped surface into methods, namespaces, and discards the rest.
//
// A method is admitted iff its name is not in the skip set and its Go
// signature matches the supported RPC shape:
//
//	func([ctx context.Context,] args ...T) (result any, err error)
//	func([ctx context.Context,] args ...T) (err error)
//
// Any other exported method (wrong return shape) is silently discarded —
// the Go analogue of "property read wrapped so a throwing getter skips the
// property without aborting the walk": a malformed method never panics the
// walk, it is simply not admitted.
func BuildSurface(instance any, opts BuildOptions) (*Surface, error) {
	v := reflect.ValueOf(instance)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, fmt.Errorf("surface: instance must be a non-nil pointer, got %T", instance)
	}

	skip := mergeSkip(opts.Skip)

	s := &Surface{
		Methods:    make(map[string]*Method),
		Namespaces: make(map[string]*Namespace),
		Internals:  make(map[string]*Method),
	}

	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		rm := t.Method(i)
		if skip[rm.Name] {
			continue
		}
		m, ok := toMethod(rm.Name, v.Method(i))
		if !ok {
			continue // not method-shaped; discarded per spec "otherwise -> discarded"
		}
		m.Path = leafPath(rm.Name)
		s.Methods[m.Name] = m
	}

	elem := v.Elem()
	if elem.Kind() != reflect.Struct {
		return s, nil
	}
	et := elem.Type()
	for i := 0; i < et.NumField(); i++ {
		field := et.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Anonymous {
			continue // embedded framework base types are not namespaces
		}
		fv := elem.Field(i)
		ns := buildNamespace(field.Name, fv)
		if ns != nil && len(ns.Methods) > 0 {
			s.Namespaces[ns.Name] = ns
		}
	}

	return s, nil
}

// RegisterInternal adds a protocol-private entry (spec: "__schema", "__sql",
// prefix-marked) to the surface. Internal entries are callable but excluded
// from schema traversal — the Go analogue of a JS non-enumerable property.
// fn must satisfy the same signature rules as BuildSurface's methods.
func (s *Surface) RegisterInternal(name string, fn any) error {
	v := reflect.ValueOf(fn)
	m, ok := toMethod(name, v)
	if !ok {
		return fmt.Errorf("surface: internal method %q has unsupported signature %s", name, v.Type())
	}
	m.Path = name
	s.Internals[name] = m
	return nil
}

// RegisterExternal adds a plugin-contributed method (spec §4.7 "methods?")
// to the surface's visible method table under name, as if an actor itself
// had declared it. fn must satisfy the same signature rules as
// BuildSurface's methods. A name collision with an actor-declared method is
// rejected — plugins never shadow the actor's own surface.
func (s *Surface) RegisterExternal(name string, fn any) error {
	if _, exists := s.Methods[name]; exists {
		return fmt.Errorf("surface: method %q already declared on actor", name)
	}
	v := reflect.ValueOf(fn)
	m, ok := toMethod(name, v)
	if !ok {
		return fmt.Errorf("surface: plugin method %q has unsupported signature %s", name, v.Type())
	}
	m.Path = leafPath(name)
	s.Methods[name] = m
	return nil
}

// buildNamespace inspects fv (an exported struct field, possibly a pointer)
// and returns a Namespace if it exposes at least one qualifying method.
// Non-function fields inside the candidate are ignored per spec §4.1.
func buildNamespace(name string, fv reflect.Value) *Namespace {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil
		}
	} else if fv.CanAddr() {
		fv = fv.Addr()
	} else {
		// Not addressable and not already a pointer: methods declared with a
		// pointer receiver would be invisible, so fall back to the value's
		// own method set only.
	}

	ft := fv.Type()
	ns := &Namespace{Name: lowerFirst(name), Methods: make(map[string]*Method)}
	for i := 0; i < ft.NumMethod(); i++ {
		rm := ft.Method(i)
		m, ok := toMethod(rm.Name, fv.Method(i))
		if !ok {
			continue
		}
		m.Path = ns.Name + "." + leafPath(m.Name)
		ns.Methods[m.Name] = m
	}
	return ns
}

// toMethod validates that fn matches the supported RPC method shape and, if
// so, returns the bound Method descriptor.
func toMethod(name string, fn reflect.Value) (*Method, bool) {
	if fn.Kind() != reflect.Func {
		return nil, false
	}
	ft := fn.Type()

	switch ft.NumOut() {
	case 1:
		if ft.Out(0) != errorType {
			return nil, false
		}
	case 2:
		if ft.Out(1) != errorType {
			return nil, false
		}
	default:
		return nil, false
	}

	in := make([]reflect.Type, 0, ft.NumIn())
	wantsCtx := false
	start := 0
	if ft.NumIn() > 0 && ft.In(0).Implements(ctxType) {
		wantsCtx = true
		start = 1
	}
	for i := start; i < ft.NumIn(); i++ {
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			return nil, false // variadic methods are not RPC-shaped
		}
		in = append(in, ft.In(i))
	}

	return &Method{
		Name:      name,
		Params:    len(in),
		fn:        fn,
		wantsCtx:  wantsCtx,
		argTypes:  in,
		hasResult: ft.NumOut() == 2,
	}, true
}

func mergeSkip(extra map[string]bool) map[string]bool {
	skip := make(map[string]bool, len(BaseSkipSet)+len(extra))
	for k := range BaseSkipSet {
		skip[k] = true
	}
	for k, v := range extra {
		if v {
			skip[k] = true
		}
	}
	return skip
}

func leafPath(name string) string { return lowerFirst(name) }

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// SortedPaths returns every admitted dotted path (methods and namespaced
// methods, excluding internals) in stable sorted order — used by schema
// generation so output is deterministic across builds.
func (s *Surface) SortedPaths() []string {
	paths := make([]string, 0, len(s.Methods))
	for _, m := range s.Methods {
		paths = append(paths, m.Path)
	}
	for _, ns := range s.Namespaces {
		for _, m := range ns.Methods {
			paths = append(paths, m.Path)
		}
	}
	sort.Strings(paths)
	return paths
}
