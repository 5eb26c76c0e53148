// Package transport defines the wire-level contract every client transport
// implements: encode one call, get back a raw JSON result or a wire error.
// client.Client sits above this and owns argument/result marshaling so
// transports stay protocol-shaped rather than type-shaped.
package transport

import (
	"context"
	"encoding/json"
)

// Transport sends one RPC call and returns its raw JSON result.
type Transport interface {
	Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error)
	Close() error
}
