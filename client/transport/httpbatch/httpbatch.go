// Package httpbatch implements the stateless HTTP batch client transport
// (spec §4.8/§6): every call is its own POST carrying a one-element batch
// body, decoded the same way the server's internal/session.HandleBatch
// decodes a multi-call body.
package httpbatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arkeep-io/actorrpc/rpcerr"
)

// Transport is a stateless transport.Transport backed by a single HTTP POST
// per call. It holds no connection state between calls — every Call is an
// independent round trip, the direct analogue of the teacher's short-lived
// per-request REST client calls rather than its persistent WebSocket hub.
type Transport struct {
	endpoint   string
	httpClient *http.Client
}

// New builds a Transport posting to endpoint using client (http.DefaultClient
// if nil).
func New(endpoint string, client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	return &Transport{endpoint: endpoint, httpClient: client}
}

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

// Call posts a one-element batch body and unwraps its single reply.
func (t *Transport) Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error) {
	body, err := json.Marshal([]callFrame{{ID: 0, Method: "do", Path: path, Args: args}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, rpcerr.Wrap(rpcerr.CodeConnectionFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, rpcerr.Newf(rpcerr.CodeRPCRemote, "batch request failed: %s", resp.Status)
	}

	var replies []replyFrame
	if err := json.Unmarshal(raw, &replies); err != nil {
		return nil, fmt.Errorf("httpbatch: decoding reply: %w", err)
	}
	if len(replies) != 1 {
		return nil, fmt.Errorf("httpbatch: expected 1 reply, got %d", len(replies))
	}

	reply := replies[0]
	if reply.Error != nil {
		return nil, reply.Error
	}
	return reply.Result, nil
}

// Close is a no-op: Transport holds no persistent connection.
func (t *Transport) Close() error { return nil }
