package actorhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arkeep-io/actorrpc/internal/surface"
	"github.com/arkeep-io/actorrpc/internal/wsstate"
)

type echoNS struct{}

func (echoNS) Shout(ctx context.Context, word string) (string, error) {
	return strings.ToUpper(word), nil
}

type echoActor struct {
	Echo echoNS
}

func (*echoActor) Ping(ctx context.Context) (string, error) { return "pong", nil }

func buildEchoHost(t *testing.T) (*Host, *httptest.Server) {
	t.Helper()
	s, err := surface.BuildSurface(&echoActor{}, surface.BuildOptions{})
	require.NoError(t, err)
	target := surface.Bind(s)

	h := NewHost(Config{
		ActorID:         "echo-1",
		Target:          target,
		Surface:         s,
		ProtocolVersion: 1,
		Logger:          zap.NewNop(),
	})
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	return h, srv
}

func TestServeSchemaReturnsValidatedDocument(t *testing.T) {
	_, srv := buildEchoHost(t)

	resp, err := http.Get(srv.URL + "/__schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Methods []struct{ Name string } `json:"methods"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Len(t, doc.Methods, 1)
	require.Equal(t, "ping", doc.Methods[0].Name)
}

func TestServeBatchDispatchesMultipleCalls(t *testing.T) {
	_, srv := buildEchoHost(t)

	body := `[{"id":1,"method":"do","path":"ping","args":[]},{"id":2,"method":"do","path":"echo.shout","args":["hi"]}]`
	resp, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var replies []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&replies))
	require.Len(t, replies, 2)
	require.Equal(t, "pong", replies[0]["result"])
	require.Equal(t, "HI", replies[1]["result"])
}

func TestWebSocketRoundTripCall(t *testing.T) {
	_, srv := buildEchoHost(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"id": 1, "method": "do", "path": "ping", "args": []any{}}))

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "pong", reply["result"])
}

// TestColdWakeReconnectObservesWake exercises spec §4.3/§4.4's cold-wake
// path end to end: a socket torn down without a clean close is recorded as
// hibernated, and a reconnect presenting the same transportId observes the
// wake instead of starting a fresh attachment.
func TestColdWakeReconnectObservesWake(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	s, err := surface.BuildSurface(&echoActor{}, surface.BuildOptions{})
	require.NoError(t, err)
	target := surface.Bind(s)

	h := NewHost(Config{
		ActorID:         "echo-cold-wake",
		Target:          target,
		Surface:         s,
		ProtocolVersion: 1,
		Logger:          logger,
	})
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?transportId=fixed-transport"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{"id": 1, "method": "do", "path": "ping", "args": []any{}}))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, "pong", reply["result"])

	// Sever the TCP connection directly, without a close handshake, the way
	// an evicted process drops its sockets rather than closing them.
	require.NoError(t, conn.NetConn().Close())

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		a, ok := h.attachments["fixed-transport"]
		return ok && a.State == wsstate.StateHibernated
	}, 2*time.Second, 10*time.Millisecond)

	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn2.Close()

	require.NoError(t, conn2.WriteJSON(map[string]any{"id": 1, "method": "do", "path": "ping", "args": []any{}}))
	_ = conn2.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn2.ReadJSON(&reply))
	require.Equal(t, "pong", reply["result"])

	require.Len(t, logs.FilterMessage("transport woke from hibernation").All(), 1)
}

func TestMetricsEndpointRespondsOK(t *testing.T) {
	_, srv := buildEchoHost(t)

	_, err := http.Post(srv.URL+"/", "application/json", strings.NewReader(`[{"id":1,"method":"do","path":"ping","args":[]}]`))
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/__metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
