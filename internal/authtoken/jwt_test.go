package authtoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	m, err := NewGenerated("actorrpc-test", time.Hour)
	require.NoError(t, err)

	token, err := m.Issue("widgets/42")
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "widgets/42", claims.ActorID)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m, err := NewGenerated("actorrpc-test", -time.Minute)
	require.NoError(t, err)

	token, err := m.Issue("widgets/42")
	require.NoError(t, err)

	_, err = m.Validate(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateRejectsTokenFromDifferentKey(t *testing.T) {
	m1, err := NewGenerated("actorrpc-test", time.Hour)
	require.NoError(t, err)
	m2, err := NewGenerated("actorrpc-test", time.Hour)
	require.NoError(t, err)

	token, err := m1.Issue("widgets/42")
	require.NoError(t, err)

	_, err = m2.Validate(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
}
