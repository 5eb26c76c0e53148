package actorrpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type counterNS struct {
	n int
}

func (c *counterNS) Increment(ctx context.Context) (int, error) {
	c.n++
	return c.n, nil
}

type counterActor struct {
	Base
	Counter counterNS
}

func TestNewActorServesSchema(t *testing.T) {
	dir := t.TempDir()
	a, err := NewActor(HostConfig{
		ActorID:    "counter-1",
		Instance:   &counterActor{},
		StorageDir: dir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.Host.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/__schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
