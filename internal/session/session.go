package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/arkeep-io/actorrpc/capnwire"
	"github.com/arkeep-io/actorrpc/rpcerr"
)

// AuthValidator validates a first-message auth token (spec §4.10's server
// side counterpart). Sessions that do not require auth simply never see a
// "auth" frame; Session itself is auth-agnostic and delegates entirely.
type AuthValidator func(ctx context.Context, token string) (valid bool, message string)

// Session is a single socket's RPC dispatcher: it binds one capnwire.Target
// to a message source, with the same lifetime as its transport (spec §3).
// It owns no pending-call table of its own — server-side calls are
// synchronous request/response per frame, so there is nothing to track
// between frames the way the client must track its outstanding promises.
type Session struct {
	target capnwire.Target
	auth   AuthValidator
	logger *zap.Logger

	protocolVersion int
}

// New creates a Session bound to target. auth may be nil if the actor host
// requires no first-message authentication on this socket.
func New(target capnwire.Target, auth AuthValidator, logger *zap.Logger, protocolVersion int) *Session {
	return &Session{target: target, auth: auth, logger: logger.Named("session"), protocolVersion: protocolVersion}
}

// HandleMessage decodes one inbound frame and returns the bytes to write
// back, or nil if the frame requires no reply (this never happens for the
// frame kinds actorrpc defines server-side, but the signature stays general
// for forward compatibility with unsolicited push messages).
//
// Error serialization strips everything except {code, message, data} per
// spec §4.5/§7 — rpcerr.Error already redacts on MarshalJSON.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("session: invalid frame: %w", err)
	}

	switch env.kind() {
	case KindPing:
		return json.Marshal(pongFrame{Type: "pong", ID: valueOr(env.ID, 0)})

	case KindAuth:
		return s.handleAuth(ctx, env)

	case KindCall:
		return s.handleCall(ctx, env)

	default:
		return nil, fmt.Errorf("session: unrecognized frame shape")
	}
}

func (s *Session) handleAuth(ctx context.Context, env envelope) ([]byte, error) {
	if s.auth == nil {
		return json.Marshal(authResultFrame{Type: "auth_result", Valid: true})
	}
	valid, msg := s.auth(ctx, env.Token)
	return json.Marshal(authResultFrame{Type: "auth_result", Valid: valid, Message: msg})
}

func (s *Session) handleCall(ctx context.Context, env envelope) ([]byte, error) {
	id := valueOr(env.ID, 0)

	result, err := s.target.Dispatch(ctx, env.Path, env.Args)
	if err != nil {
		wireErr := toWireError(err)
		s.logger.Debug("rpc call failed", zap.String("path", env.Path), zap.Error(err))
		return json.Marshal(replyErr{ID: id, Error: wireErr, Version: s.protocolVersion})
	}

	return json.Marshal(replyOK{ID: id, Result: result, Version: s.protocolVersion})
}

// toWireError ensures every error reaching the client is an *rpcerr.Error so
// stack traces and internal wrapped causes never serialize — an error that
// did not originate from rpcerr is folded into a generic rpc-remote kind.
func toWireError(err error) *rpcerr.Error {
	var e *rpcerr.Error
	if ok := asRPCErr(err, &e); ok {
		return e
	}
	return rpcerr.New(rpcerr.CodeRPCRemote, err.Error())
}

func asRPCErr(err error, target **rpcerr.Error) bool {
	if e, ok := err.(*rpcerr.Error); ok {
		*target = e
		return true
	}
	return false
}

func valueOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}
