// Package rpcerr defines the error taxonomy shared by the server and client
// halves of actorrpc. Every error that crosses the wire is shaped as
// {code, message, data?}; stack traces never leave the process they
// originated in — see Error.MarshalJSON.
package rpcerr

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Code identifies the kind of failure. Callers should switch on Code (or use
// errors.Is against an *Error built with New for the same Code) rather than parsing
// Message, which is meant for humans and may change wording over time.
type Code string

const (
	CodeConnectionFailed    Code = "connection-failed"
	CodeConnectionLost      Code = "connection-lost"
	CodeConnectionTimeout   Code = "connection-timeout"
	CodeHeartbeatTimeout    Code = "heartbeat-timeout"
	CodeProtocolVersion     Code = "protocol-version"
	CodeUnauthorized        Code = "unauthorized"
	CodeInsecureAuthBlocked Code = "insecure-auth-blocked"
	CodeRPCRemote           Code = "rpc-remote"
	CodeTimeout             Code = "timeout"
	CodeModuleMissing       Code = "module-missing"
)

// retryableByDefault records which codes are retryable absent any
// server-signaled override (only CodeRPCRemote varies per-instance).
var retryableByDefault = map[Code]bool{
	CodeConnectionFailed:    true,
	CodeConnectionLost:      true,
	CodeConnectionTimeout:   true,
	CodeHeartbeatTimeout:    true,
	CodeProtocolVersion:     false,
	CodeUnauthorized:        false,
	CodeInsecureAuthBlocked: false,
	CodeRPCRemote:           false, // server must signal retryable explicitly
	CodeTimeout:             true,
	CodeModuleMissing:       false,
}

// Error is the concrete error type used throughout actorrpc. It implements
// the standard error interface plus the wire shape mandated by spec §7.
type Error struct {
	Kind      Code   `json:"code"`
	Msg       string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Retryable bool   `json:"-"`

	// wrapped, when set, is preserved for errors.Unwrap/Is on the server side
	// only — it is never serialized to the wire.
	wrapped error
}

// New constructs an Error with the default retryability for kind.
func New(kind Code, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Retryable: retryableByDefault[kind]}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Code, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap annotates err with a Code, preserving it for errors.Unwrap on the
// originating process. The wrapped error never crosses the wire (see
// MarshalJSON).
func Wrap(kind Code, err error) *Error {
	e := New(kind, err.Error())
	e.wrapped = err
	return e
}

// WithData attaches structured, client-visible context and returns the
// receiver for chaining.
func (e *Error) WithData(data any) *Error {
	e.Data = data
	return e
}

// WithRetryable overrides the default retryability for this instance. Used
// by the RPC-remote path, where the server decides per-call whether a
// failure is safe to retry.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is lets errors.Is(err, rpcerr.New(CodeTimeout, "")) match on Kind alone,
// so callers can build sentinel-style comparisons without allocating a
// matching message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// wireError is the JSON shape specified in spec §6/§7: only code, message,
// and optional data reach the client. Retryable is communicated separately
// (it is a local policy concern, not part of the wire contract) except where
// a transport chooses to fold it into data.
type wireError struct {
	Code    Code `json:"code"`
	Message string `json:"message"`
	Data    any  `json:"data,omitempty"`
}

// MarshalJSON redacts everything except {code, message, data}. Stack traces
// and wrapped internal errors never serialize.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireError{Code: e.Kind, Message: e.Msg, Data: e.Data})
}

// UnmarshalJSON reconstructs an Error from the wire shape, applying the
// default retryability for the decoded code (a server may still override
// this via a "retryable" key inside Data, which callers can inspect).
func (e *Error) UnmarshalJSON(b []byte) error {
	var w wireError
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	e.Kind = w.Code
	e.Msg = w.Message
	e.Data = w.Data
	e.Retryable = retryableByDefault[w.Code]
	return nil
}

// FromRemote builds an Error representing a server-signaled failure
// delivered over the wire as {code, message, data}. retryable comes from
// the session-level signal (e.g. a "retryable" field in data), defaulting
// to false for rpc-remote per spec §4.12.
func FromRemote(code Code, message string, data any, retryable bool) *Error {
	e := New(code, message)
	e.Data = data
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err (or any error in its chain) is a
// retry-eligible *Error. Non-*Error values are never retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf extracts the Code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
