// Package session implements the per-socket RPC session host (spec §4.5):
// decode one frame, dispatch to the bound target, encode the response,
// write it back. The frame shapes below are exactly the wire contract in
// spec §6, not the Cap'n Web wire protocol — capnwire.Session is reserved
// for the HTTP batch path, which spec §6 calls out as "RPC batch body
// (capnweb-shaped)".
package session

import (
	"encoding/json"

	"github.com/arkeep-io/actorrpc/rpcerr"
)

// envelope is a superset decode target for every inbound frame shape in
// spec §6. Exactly one of the "modes" below is populated per frame:
// RPC call (Method == "do"), auth (Type == "auth"), or ping (Type == "ping").
type envelope struct {
	ID     *int            `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Path   string          `json:"path,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`

	Type      string `json:"type,omitempty"`
	Token     string `json:"token,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// replyOK is the server->client success frame: {id, result}.
type replyOK struct {
	ID      int `json:"id"`
	Result  any `json:"result"`
	Version int `json:"version,omitempty"`
}

// replyErr is the server->client failure frame: {id, error:{code,message,data?}}.
type replyErr struct {
	ID      int          `json:"id"`
	Error   *rpcerr.Error `json:"error"`
	Version int          `json:"version,omitempty"`
}

// pongFrame is the server->client heartbeat reply: {type:"pong", id}.
type pongFrame struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
}

// authResultFrame is the server->client auth outcome: {type:"auth_result", valid, message?}.
type authResultFrame struct {
	Type    string `json:"type"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Kind classifies a decoded envelope so Session.HandleMessage knows which
// branch to take.
type Kind int

const (
	KindCall Kind = iota
	KindAuth
	KindPing
	KindUnknown
)

func (e envelope) kind() Kind {
	switch {
	case e.Type == "auth":
		return KindAuth
	case e.Type == "ping":
		return KindPing
	case e.Method == "do":
		return KindCall
	default:
		return KindUnknown
	}
}
