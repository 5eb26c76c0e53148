package wsadvanced

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/arkeep-io/actorrpc/rpcerr"
)

func TestBackoffDelayIsDeterministicWithJitterDisabled(t *testing.T) {
	d1 := backoffDelay(1, 100*time.Millisecond, 5*time.Second, 2.0, true)
	d2 := backoffDelay(2, 100*time.Millisecond, 5*time.Second, 2.0, true)
	d3 := backoffDelay(3, 100*time.Millisecond, 5*time.Second, 2.0, true)

	require.Equal(t, 100*time.Millisecond, d1)
	require.Equal(t, 200*time.Millisecond, d2)
	require.Equal(t, 400*time.Millisecond, d3)
}

func TestBackoffDelayCapsAtMaxWithJitterDisabled(t *testing.T) {
	d := backoffDelay(10, 100*time.Millisecond, 1*time.Second, 2.0, true)
	require.Equal(t, 1*time.Second, d)
}

func TestBackoffDelayAddsJitterWhenEnabled(t *testing.T) {
	d := backoffDelay(1, 100*time.Millisecond, 5*time.Second, 2.0, false)
	require.GreaterOrEqual(t, d, 100*time.Millisecond)
}

var testUpgrader = websocket.Upgrader{}

// authBlockingServer upgrades the socket, observes the first close control
// frame sent by the peer, and reports its close code on codeCh.
func authBlockingServer(t *testing.T, codeCh chan<- int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetCloseHandler(func(code int, text string) error {
			select {
			case codeCh <- code:
			default:
			}
			return nil
		})
		_, _, _ = conn.ReadMessage()
	}))
}

func TestConnectInsecureAuthBlockedClosesWithCode4002(t *testing.T) {
	codeCh := make(chan int, 1)
	srv := authBlockingServer(t, codeCh)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, Config{URL: url, Token: "secret"})
	require.Error(t, err)

	rerr, ok := err.(*rpcerr.Error)
	require.True(t, ok, "expected *rpcerr.Error, got %T", err)
	require.Equal(t, rpcerr.CodeInsecureAuthBlocked, rerr.Kind)

	select {
	case code := <-codeCh:
		require.Equal(t, closeInsecureAuth, code)
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed a close frame from the client")
	}
}

func TestConnectAllowsInsecureAuthWhenExplicitlyEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var authFrame map[string]any
		require.NoError(t, conn.ReadJSON(&authFrame))
		require.Equal(t, "auth", authFrame["type"])
		require.NoError(t, conn.WriteJSON(map[string]any{"type": "auth_result", "valid": true}))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tr, err := Connect(ctx, Config{URL: url, Token: "secret", AllowInsecureAuth: true})
	require.NoError(t, err)
	defer tr.Close()
	require.Equal(t, StateConnected, tr.State())
}

// heartbeatServer upgrades the socket and, for every inbound ping frame,
// either replies with a pong (if respond is true at call time) or drops the
// frame on the floor, letting the test control whether the peer looks dead.
type heartbeatServer struct {
	srv     *httptest.Server
	mu      sync.Mutex
	respond bool
}

func newHeartbeatServer(t *testing.T) *heartbeatServer {
	hs := &heartbeatServer{respond: true}
	hs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame map[string]any
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if frame["type"] != "ping" {
				continue
			}
			hs.mu.Lock()
			respond := hs.respond
			hs.mu.Unlock()
			if respond {
				_ = conn.WriteJSON(map[string]any{"type": "pong"})
			}
		}
	}))
	return hs
}

func (hs *heartbeatServer) setRespond(v bool) {
	hs.mu.Lock()
	hs.respond = v
	hs.mu.Unlock()
}

func (hs *heartbeatServer) url() string {
	return "ws" + strings.TrimPrefix(hs.srv.URL, "http")
}

func TestHeartbeatTimeoutDetectedWithinPeriodPlusTimeout(t *testing.T) {
	hs := newHeartbeatServer(t)
	defer hs.srv.Close()

	var (
		mu       sync.Mutex
		gotError error
	)
	errCh := make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := Connect(ctx, Config{
		URL:              hs.url(),
		HeartbeatPeriod:  100 * time.Millisecond,
		HeartbeatTimeout: 100 * time.Millisecond,
		MaxAttempts:      1,
		OnError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			select {
			case <-errCh:
			default:
				gotError = err
				close(errCh)
			}
		},
	})
	require.NoError(t, err)
	defer tr.Close()

	// Stop the server from answering pings so the peer looks dead.
	hs.setRespond(false)

	start := time.Now()
	select {
	case <-errCh:
		elapsed := time.Since(start)
		// Detection must happen within roughly HeartbeatPeriod+HeartbeatTimeout
		// of the last good pong, not up to 2xHeartbeatPeriod.
		require.Less(t, elapsed, 600*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat timeout was never reported")
	}

	mu.Lock()
	defer mu.Unlock()
	rerr, ok := gotError.(*rpcerr.Error)
	require.True(t, ok)
	require.Equal(t, rpcerr.CodeHeartbeatTimeout, rerr.Kind)
}
