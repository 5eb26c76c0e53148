// Package middleware implements the Client Middleware Pipeline (spec §4.9):
// transport-wrapping decorators for logging, timing, retry, and batching,
// each satisfying transport.Transport so they compose by wrapping.
package middleware

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/actorrpc/client/transport"
)

// Logging wraps a Transport, logging every call through a *zap.Logger (start
// and completion at Debug, failure at Warn), matching the teacher's structured logging style
// (server/internal/api request logger) rather than a bespoke format.
type Logging struct {
	next   transport.Transport
	logger *zap.Logger
	prefix string
	// LogArgs/LogResults toggle whether call payloads are logged (off by
	// default, since they may carry sensitive actor state).
	LogArgs    bool
	LogResults bool
}

// NewLogging wraps next, logging through logger with the given prefix
// (e.g. the actor namespace) attached to every entry as a "prefix" field.
func NewLogging(next transport.Transport, logger *zap.Logger, prefix string) *Logging {
	return &Logging{next: next, logger: logger, prefix: prefix}
}

func (l *Logging) Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error) {
	fields := []zap.Field{zap.String("prefix", l.prefix), zap.String("path", path)}
	if l.LogArgs {
		fields = append(fields, zap.ByteString("args", args))
	}
	l.logger.Debug("rpc call started", fields...)

	result, err := l.next.Call(ctx, path, args)
	if err != nil {
		l.logger.Warn("rpc call failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	if l.LogResults {
		fields = append(fields, zap.ByteString("result", result))
	}
	l.logger.Debug("rpc call completed", fields...)
	return result, nil
}

func (l *Logging) Close() error { return l.next.Close() }

// Timing wraps a Transport, recording the wall-clock duration of every call
// keyed by an internally generated request id, with TTL-based eviction of
// any entry whose call never returned (e.g. panicked goroutine upstream).
type Timing struct {
	next transport.Transport

	mu      sync.Mutex
	started map[string]time.Time
	ttl     time.Duration

	// OnDuration, if set, is called after every completed call.
	OnDuration func(path string, d time.Duration, err error)
}

// NewTiming wraps next with a TTL used only to bound the started-calls map
// if entries are ever abandoned (Call always cleans up on its own return
// path; ttl is a backstop, not the common case).
func NewTiming(next transport.Transport, ttl time.Duration) *Timing {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Timing{next: next, started: make(map[string]time.Time), ttl: ttl}
}

func (t *Timing) Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error) {
	id := requestID(ctx, path)
	start := time.Now()

	t.mu.Lock()
	t.started[id] = start
	t.evictExpiredLocked()
	t.mu.Unlock()

	result, err := t.next.Call(ctx, path, args)

	t.mu.Lock()
	delete(t.started, id)
	t.mu.Unlock()

	if t.OnDuration != nil {
		t.OnDuration(path, time.Since(start), err)
	}
	return result, err
}

// evictExpiredLocked drops entries older than ttl. Callers must hold t.mu.
func (t *Timing) evictExpiredLocked() {
	cutoff := time.Now().Add(-t.ttl)
	for id, started := range t.started {
		if started.Before(cutoff) {
			delete(t.started, id)
		}
	}
}

func (t *Timing) Close() error { return t.next.Close() }

type requestIDKey struct{}

// requestID derives a stable per-call key. Callers that want the timing
// middleware keyed by their own request id should set one via context;
// otherwise a path+start-time combination is used.
func requestID(ctx context.Context, path string) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
		return v
	}
	return path + ":" + time.Now().Format(time.RFC3339Nano)
}

// WithRequestID attaches an explicit id the Timing middleware will key its
// started-at entry with, instead of deriving one from path+timestamp.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
