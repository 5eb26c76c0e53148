// Package client implements the Client Proxy (spec §4.8): Go has no
// property-access proxy, so the recursive "a.b.c(args)" chain becomes an
// explicit typed path builder — Target(...).Path("a","b","c").Call(ctx,
// args, &result) — backed by any transport.Transport.
package client

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/arkeep-io/actorrpc/client/transport"
)

// Client is the root of the proxy: one transport, many paths.
type Client struct {
	t transport.Transport
}

// New builds a Client dispatching every call over t.
func New(t transport.Transport) *Client {
	return &Client{t: t}
}

// Target is an alias for New kept for readability at call sites, mirroring
// the spec's "root is constructed from an explicit transport" option.
func Target(t transport.Transport) *Client {
	return New(t)
}

// Path starts accumulating a dotted method path from segs, returning a
// Call-able node.
func (c *Client) Path(segs ...string) *Path {
	return &Path{client: c, segs: append([]string(nil), segs...)}
}

// Close forwards to the underlying transport. Idempotent if the transport's
// own Close is idempotent (all of actorrpc's transports are).
func (c *Client) Close() error {
	return c.t.Close()
}

// Path is an accumulated dotted method path awaiting a call. Path segments
// may be added incrementally via further calls to Path, mirroring repeated
// property access on the conceptual deep proxy.
type Path struct {
	client *Client
	segs   []string
}

// Path appends additional segments and returns a new Path, leaving the
// receiver unmodified so a partial path can be reused as a prefix for
// multiple calls.
func (p *Path) Path(segs ...string) *Path {
	next := make([]string, 0, len(p.segs)+len(segs))
	next = append(next, p.segs...)
	next = append(next, segs...)
	return &Path{client: p.client, segs: next}
}

// String returns the dotted method path, e.g. "counter.increment".
func (p *Path) String() string {
	return strings.Join(p.segs, ".")
}

// Call marshals args, dispatches the accumulated path through the
// transport, and unmarshals the result into out (if non-nil). Multiple
// calls may be in flight concurrently on paths sharing a Client; the
// transport owns multiplexing. Cancellation is best-effort: ctx.Done()
// releases the caller without guaranteeing the in-flight call was aborted
// server-side.
func (p *Path) Call(ctx context.Context, args any, out any) error {
	encoded, err := json.Marshal(args)
	if err != nil {
		return err
	}

	result, err := p.client.t.Call(ctx, p.String(), encoded)
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	return json.Unmarshal(result, out)
}
