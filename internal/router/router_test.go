package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func echoHandler(label string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Label", label)
		w.Header().Set("X-Forwarded-Path", r.URL.Path)
		w.Header().Set("X-Origin-Seen", r.Header.Get(OriginHeader))
		w.WriteHeader(http.StatusOK)
	})
}

func TestRouteSelectsActorFromPath(t *testing.T) {
	g := New(Config{
		Lookup: func(namespace, id string) (http.Handler, error) {
			require.Equal(t, "widgets", namespace)
			require.Equal(t, "42", id)
			return echoHandler("widgets-42"), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/widgets/42/ping", nil)
	rr := httptest.NewRecorder()
	g.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "widgets-42", rr.Header().Get("X-Label"))
	require.Equal(t, "/ping", rr.Header().Get("X-Forwarded-Path"))
	require.NotEmpty(t, rr.Header().Get("X-Origin-Seen"))
}

func TestRouteFallsBackToHeaderID(t *testing.T) {
	g := New(Config{
		Lookup: func(namespace, id string) (http.Handler, error) {
			require.Equal(t, "sess", id)
			return echoHandler("ok"), nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/widgets//status", nil)
	req.Header.Set(IDHeader, "sess")
	rr := httptest.NewRecorder()
	g.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRouteRejectsWhenAuthCallbackFails(t *testing.T) {
	g := New(Config{
		Lookup: func(namespace, id string) (http.Handler, error) { return echoHandler("nope"), nil },
		Auth:   func(r *http.Request) error { return errors.New("no token") },
	})

	req := httptest.NewRequest(http.MethodGet, "/widgets/1/ping", nil)
	rr := httptest.NewRecorder()
	g.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouteReturns404OnLookupFailure(t *testing.T) {
	g := New(Config{
		Lookup: func(namespace, id string) (http.Handler, error) { return nil, errors.New("no such actor") },
	})

	req := httptest.NewRequest(http.MethodGet, "/widgets/1/ping", nil)
	rr := httptest.NewRecorder()
	g.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}
