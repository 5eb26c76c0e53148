// Package capnwire defines the narrow interface actorrpc needs from a
// Cap'n Web protocol implementation. The wire-level protocol itself (push /
// pull / release / abort message framing, promise pipelining, capability
// export tables) is explicitly out of scope for this module per spec §1 —
// it is consumed as an external collaborator, the same way the teacher
// consumes database/sql drivers through gorm's Dialector interface rather
// than speaking wire protocol itself.
//
// The shape here is grounded on other_examples' gocapnweb reference
// implementation (RpcTarget.Dispatch, SessionData, RpcSession.HandleMessage):
// a session holds per-connection pending-operation state and forwards
// decoded (method, args) pairs to a Target; actorrpc supplies the Target
// (internal/surface.Target satisfies it) and the wire session.
package capnwire

import (
	"context"
	"encoding/json"
)

// Target is anything that can dispatch a dotted method path with JSON-encoded
// arguments and produce a JSON-marshalable result or an error. It is the
// capability object a Cap'n Web session invokes per incoming call.
type Target interface {
	Dispatch(ctx context.Context, path string, args json.RawMessage) (any, error)
}

// Session is a single Cap'n Web protocol session bound to one Target and one
// Frame source/sink. It is supplied by the protocol implementation; actorrpc
// only needs to feed it inbound bytes and receive outbound ones.
type Session interface {
	// HandleFrame decodes one inbound protocol frame, dispatches it against
	// the bound Target, and returns zero or more outbound frames to write
	// back (a push/release frame yields none; a pull frame yields one).
	HandleFrame(ctx context.Context, frame []byte) ([][]byte, error)
}

// SessionFactory builds a new Session bound to target. No package in this
// module calls it: internal/session decodes its own frame format and
// dispatches straight against a Target.
type SessionFactory func(target Target) Session
