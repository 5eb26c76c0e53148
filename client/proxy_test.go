package client

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	lastPath string
	lastArgs json.RawMessage
	result   json.RawMessage
	err      error
	closed   bool
}

func (f *fakeTransport) Call(ctx context.Context, path string, args json.RawMessage) (json.RawMessage, error) {
	f.lastPath = path
	f.lastArgs = args
	return f.result, f.err
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func TestPathStringJoinsSegmentsWithDots(t *testing.T) {
	c := New(&fakeTransport{})
	p := c.Path("counter", "increment")
	require.Equal(t, "counter.increment", p.String())
}

func TestPathAppendsSegmentsImmutably(t *testing.T) {
	c := New(&fakeTransport{})
	base := c.Path("a", "b")
	child := base.Path("c")

	require.Equal(t, "a.b", base.String())
	require.Equal(t, "a.b.c", child.String())
}

func TestCallMarshalsArgsAndDispatchesAccumulatedPath(t *testing.T) {
	ft := &fakeTransport{result: json.RawMessage(`{"value":7}`)}
	c := Target(ft)

	var out struct {
		Value int `json:"value"`
	}
	err := c.Path("counter").Path("increment").Call(context.Background(), map[string]int{"by": 3}, &out)
	require.NoError(t, err)

	require.Equal(t, "counter.increment", ft.lastPath)
	require.JSONEq(t, `{"by":3}`, string(ft.lastArgs))
	require.Equal(t, 7, out.Value)
}

func TestCallPropagatesTransportError(t *testing.T) {
	boom := errTest("boom")
	ft := &fakeTransport{err: boom}
	c := Target(ft)

	err := c.Path("x").Call(context.Background(), nil, nil)
	require.ErrorIs(t, err, boom)
}

func TestCallWithNoOutSkipsUnmarshal(t *testing.T) {
	ft := &fakeTransport{result: json.RawMessage(`not valid json`)}
	c := Target(ft)

	err := c.Path("x").Call(context.Background(), nil, nil)
	require.NoError(t, err)
}

func TestCloseForwardsToTransport(t *testing.T) {
	ft := &fakeTransport{}
	c := New(ft)
	require.NoError(t, c.Close())
	require.True(t, ft.closed)
}

type errTest string

func (e errTest) Error() string { return string(e) }
