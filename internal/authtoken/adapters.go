package authtoken

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// SessionValidator builds a session.AuthValidator-shaped func (kept as a
// plain function type here to avoid an import cycle with internal/session;
// actorhttp.Config.Auth and internal/session.AuthValidator share this exact
// signature) bound to m, scoped to expectedActorID.
func (m *Manager) SessionValidator(expectedActorID string) func(ctx context.Context, token string) (bool, string) {
	return func(ctx context.Context, token string) (bool, string) {
		claims, err := m.Validate(token)
		if err != nil {
			return false, err.Error()
		}
		if claims.ActorID != expectedActorID {
			return false, "token not valid for this actor"
		}
		return true, ""
	}
}

// RequireBearer builds a router.AuthCallback-shaped func requiring a valid
// "Authorization: Bearer <token>" header on every gateway request.
func (m *Manager) RequireBearer() func(r *http.Request) error {
	return func(r *http.Request) error {
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return fmt.Errorf("authtoken: missing bearer token")
		}
		_, err := m.Validate(strings.TrimPrefix(header, prefix))
		return err
	}
}
