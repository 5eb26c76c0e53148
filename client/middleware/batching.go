package middleware

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/arkeep-io/actorrpc/client/transport"
	"github.com/arkeep-io/actorrpc/rpcerr"
)

const (
	defaultBatchSize   = 10
	defaultBatchWindow = 10 * time.Millisecond
)

type batchCall struct {
	ctx    context.Context
	path   string
	args   json.RawMessage
	result chan batchResult
}

type batchResult struct {
	data json.RawMessage
	err  error
}

// BatchFunc sends a batch of calls at once and returns one result per call,
// in the same order, or an error if the whole batch failed to send. Batching
// needs a transport that understands multi-call frames (e.g. the HTTP batch
// endpoint); BatchFunc is the seam between this middleware's demux logic and
// that wire format.
type BatchFunc func(ctx context.Context, paths []string, args []json.RawMessage) ([]json.RawMessage, []error, error)

// Batching coalesces Call invocations arriving within a short window into a
// single underlying batch request, demultiplexing results back to each
// caller by index (spec §4.9). It does not implement transport.Transport's
// wire format itself — it delegates the actual batch send to send.
type Batching struct {
	send BatchFunc

	MaxBatchSize int
	MaxWait      time.Duration

	mu      sync.Mutex
	pending []*batchCall
	timer   *time.Timer
}

// NewBatching builds a Batching middleware that flushes when either
// MaxBatchSize calls have queued or MaxWait has elapsed since the first
// queued call, whichever comes first.
func NewBatching(send BatchFunc) *Batching {
	return &Batching{send: send, MaxBatchSize: defaultBatchSize, MaxWait: defaultBatchWindow}
}

func (b *Batching) Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error) {
	call := &batchCall{ctx: ctx, path: path, args: args, result: make(chan batchResult, 1)}

	b.mu.Lock()
	b.pending = append(b.pending, call)
	flush := len(b.pending) >= b.MaxBatchSize
	if flush {
		b.flushLocked()
	} else if b.timer == nil {
		b.timer = time.AfterFunc(b.MaxWait, b.flush)
	}
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-call.result:
		return r.data, r.err
	}
}

func (b *Batching) flush() {
	b.mu.Lock()
	b.flushLocked()
	b.mu.Unlock()
}

// flushLocked sends the current pending batch. Callers must hold b.mu.
func (b *Batching) flushLocked() {
	if len(b.pending) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}

	batch := b.pending
	b.pending = nil

	go func() {
		paths := make([]string, len(batch))
		args := make([]json.RawMessage, len(batch))
		for i, c := range batch {
			paths[i] = c.path
			args[i] = c.args
		}

		results, errs, sendErr := b.send(context.Background(), paths, args)
		if sendErr != nil {
			for _, c := range batch {
				c.result <- batchResult{err: rpcerr.Wrap(rpcerr.CodeConnectionLost, sendErr)}
			}
			return
		}
		for i, c := range batch {
			var err error
			if i < len(errs) {
				err = errs[i]
			}
			var data json.RawMessage
			if i < len(results) {
				data = results[i]
			}
			c.result <- batchResult{data: data, err: err}
		}
	}()
}

func (b *Batching) Close() error { return nil }

var _ transport.Transport = (*Batching)(nil)
