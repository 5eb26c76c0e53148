package surface

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type usersNS struct{}

func (usersNS) Get(id string) (string, error) { return "user-" + id, nil }
func (usersNS) List() ([]string, error)        { return []string{"a", "b"}, nil }

type demoActor struct {
	Users usersNS

	private int //nolint:unused
}

func (a *demoActor) Ping() (string, error)  { return "pong", nil }
func (a *demoActor) Fetch(context.Context) error { return nil } // skip-set member
func (a *demoActor) unexported() string          { return "nope" }

// TestBuildSurfacePartitioning mirrors spec scenario S1: methods, namespaces
// and skip-set members land where the spec says they must.
func TestBuildSurfacePartitioning(t *testing.T) {
	a := &demoActor{}
	s, err := BuildSurface(a, BuildOptions{})
	require.NoError(t, err)

	require.Contains(t, s.Methods, "Ping")
	assert.Equal(t, 0, s.Methods["Ping"].Params)
	assert.Equal(t, "ping", s.Methods["Ping"].Path)

	assert.NotContains(t, s.Methods, "Fetch", "lifecycle hooks must never be admitted")

	require.Contains(t, s.Namespaces, "users")
	ns := s.Namespaces["users"]
	require.Contains(t, ns.Methods, "Get")
	assert.Equal(t, 1, ns.Methods["Get"].Params)
	assert.Equal(t, "users.get", ns.Methods["Get"].Path)
	require.Contains(t, ns.Methods, "List")
	assert.Equal(t, 0, ns.Methods["List"].Params)
}

func TestDispatchRoundTrip(t *testing.T) {
	a := &demoActor{}
	s, err := BuildSurface(a, BuildOptions{})
	require.NoError(t, err)

	target := Bind(s)

	result, err := target.Dispatch(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", result)

	args, _ := json.Marshal([]any{"42"})
	result, err = target.Dispatch(context.Background(), "users.get", args)
	require.NoError(t, err)
	assert.Equal(t, "user-42", result)

	_, err = target.Dispatch(context.Background(), "does.not.exist", nil)
	assert.Error(t, err)
}

type recordingMiddleware struct {
	requests  []string
	responses []string
	errors    []string
}

func (m *recordingMiddleware) OnRequest(_ context.Context, path string, _ json.RawMessage) error {
	m.requests = append(m.requests, path)
	return nil
}
func (m *recordingMiddleware) OnResponse(_ context.Context, path string, _ any) error {
	m.responses = append(m.responses, path)
	return nil
}
func (m *recordingMiddleware) OnError(_ context.Context, path string, _ error) error {
	m.errors = append(m.errors, path)
	return nil
}

// TestMiddlewareSettlesExactlyOnce exercises spec testable property #2: every
// invocation sees exactly one onRequest and exactly one of onResponse/onError.
func TestMiddlewareSettlesExactlyOnce(t *testing.T) {
	a := &demoActor{}
	s, err := BuildSurface(a, BuildOptions{})
	require.NoError(t, err)

	mw := &recordingMiddleware{}
	target := Bind(s, mw)

	_, err = target.Dispatch(context.Background(), "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, mw.requests)
	assert.Equal(t, []string{"ping"}, mw.responses)
	assert.Empty(t, mw.errors)

	_, err = target.Dispatch(context.Background(), "missing", nil)
	assert.Error(t, err)
	assert.Equal(t, []string{"ping", "missing"}, mw.requests)
	assert.Equal(t, []string{"ping"}, mw.responses)
	assert.Equal(t, []string{"missing"}, mw.errors)
}
