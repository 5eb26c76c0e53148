package httpbatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type serverCallFrame struct {
	ID   int             `json:"id"`
	Path string          `json:"path"`
	Args json.RawMessage `json:"args"`
}

type serverReplyFrame struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *serverWireErr  `json:"error,omitempty"`
}

type serverWireErr struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestCallPostsOneElementBatchAndUnwrapsReply(t *testing.T) {
	var gotBody []serverCallFrame
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]serverReplyFrame{{ID: 0, Result: gotBody[0].Args}})
	}))
	defer srv.Close()

	tr := New(srv.URL, nil)
	result, err := tr.Call(context.Background(), "counter.increment", json.RawMessage(`{"by":1}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"by":1}`, string(result))

	require.Len(t, gotBody, 1)
	require.Equal(t, "counter.increment", gotBody[0].Path)
}

func TestCallReturnsWireError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]serverReplyFrame{{ID: 0, Error: &serverWireErr{Code: "rpc_remote", Message: "nope"}}})
	}))
	defer srv.Close()

	tr := New(srv.URL, nil)
	_, err := tr.Call(context.Background(), "x", json.RawMessage(`null`))
	require.Error(t, err)
}

func TestCallReturnsErrorOnHTTPFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := New(srv.URL, nil)
	_, err := tr.Call(context.Background(), "x", json.RawMessage(`null`))
	require.Error(t, err)
}

func TestCloseIsNoOp(t *testing.T) {
	tr := New("http://example.invalid", nil)
	require.NoError(t, tr.Close())
}
