// Package ws implements a bare WebSocket client transport: one persistent
// connection, a pending-call table keyed by request id, no reconnect or
// heartbeat logic of its own (see client/transport/wsadvanced for that).
// Grounded on the same gorilla/websocket dial/read/write split the teacher
// and nvremote reference both use, scoped to the client side of actorrpc's
// own simple frame contract (spec §6) rather than a push-only pub/sub feed.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/arkeep-io/actorrpc/rpcerr"
)

type callFrame struct {
	ID     int             `json:"id"`
	Method string          `json:"method"`
	Path   string          `json:"path"`
	Args   json.RawMessage `json:"args"`
}

type replyFrame struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcerr.Error   `json:"error"`
}

type pending struct {
	result json.RawMessage
	err    error
	done   chan struct{}
}

// Transport is a single persistent WebSocket connection.
type Transport struct {
	conn *websocket.Conn

	mu      sync.Mutex
	waiting map[int]*pending
	nextID  int64
	closed  bool
}

// Dial opens a WebSocket connection to url and starts its read loop.
func Dial(ctx context.Context, url string) (*Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.CodeConnectionFailed, err)
	}

	t := &Transport{conn: conn, waiting: make(map[int]*pending)}
	go t.readLoop()
	return t, nil
}

func (t *Transport) readLoop() {
	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			t.failAll(rpcerr.Wrap(rpcerr.CodeConnectionLost, err))
			return
		}

		var reply replyFrame
		if err := json.Unmarshal(raw, &reply); err != nil {
			continue
		}
		t.resolve(reply)
	}
}

func (t *Transport) resolve(reply replyFrame) {
	t.mu.Lock()
	p, ok := t.waiting[reply.ID]
	if ok {
		delete(t.waiting, reply.ID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	if reply.Error != nil {
		p.err = reply.Error
	} else {
		p.result = reply.Result
	}
	close(p.done)
}

func (t *Transport) failAll(err error) {
	t.mu.Lock()
	waiting := t.waiting
	t.waiting = make(map[int]*pending)
	t.closed = true
	t.mu.Unlock()

	for _, p := range waiting {
		p.err = err
		close(p.done)
	}
}

// Call sends one RPC call and blocks until its reply arrives or ctx is done.
func (t *Transport) Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error) {
	id := int(atomic.AddInt64(&t.nextID, 1))
	p := &pending{done: make(chan struct{})}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, rpcerr.New(rpcerr.CodeConnectionLost, "transport closed")
	}
	t.waiting[id] = p
	t.mu.Unlock()

	frame, err := json.Marshal(callFrame{ID: id, Method: "do", Path: path, Args: args})
	if err != nil {
		return nil, err
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return nil, rpcerr.Wrap(rpcerr.CodeConnectionLost, err)
	}

	select {
	case <-ctx.Done():
		t.mu.Lock()
		delete(t.waiting, id)
		t.mu.Unlock()
		return nil, fmt.Errorf("ws: %w", ctx.Err())
	case <-p.done:
		return p.result, p.err
	}
}

// Close closes the underlying connection. Closing an already-closed
// Transport returns nil.
func (t *Transport) Close() error {
	t.failAll(rpcerr.New(rpcerr.CodeConnectionLost, "transport closed"))
	if err := t.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
