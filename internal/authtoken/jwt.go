// Package authtoken mints and validates the RS256 JWTs used as first-message
// WebSocket auth tokens (spec §4.10) and as the gateway's optional bearer
// auth (spec §6). Adapted from the teacher's server/internal/auth/jwt.go:
// same RSA key lifecycle and RS256-only verification, collapsed from a
// user/email/role claim set down to the single actor-scoped subject claim
// this framework actually needs.
package authtoken

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const rsaKeyBits = 2048

var (
	ErrTokenExpired = errors.New("authtoken: token expired")
	ErrTokenInvalid = errors.New("authtoken: token invalid")
)

// Claims identifies the caller a token was issued for and which actor
// instance it authorizes.
type Claims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
}

// Manager signs and verifies RS256 tokens.
type Manager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	ttl        time.Duration
}

// NewGenerated creates a Manager backed by a freshly generated, in-memory
// RSA key pair — tokens issued before a restart stop validating after one.
func NewGenerated(issuer string, ttl time.Duration) (*Manager, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("authtoken: generating RSA key pair: %w", err)
	}
	return &Manager{privateKey: key, publicKey: &key.PublicKey, issuer: issuer, ttl: ttl}, nil
}

// NewFromPEM builds a Manager from PEM-encoded PKCS#8 private and PKIX
// public key bytes, for deployments that want tokens to survive a restart.
func NewFromPEM(privatePEM, publicPEM []byte, issuer string, ttl time.Duration) (*Manager, error) {
	privBlock, _ := pem.Decode(privatePEM)
	if privBlock == nil {
		return nil, errors.New("authtoken: failed to decode private key PEM block")
	}
	privAny, err := x509.ParsePKCS8PrivateKey(privBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("authtoken: parsing private key: %w", err)
	}
	privateKey, ok := privAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("authtoken: private key is not RSA")
	}

	pubBlock, _ := pem.Decode(publicPEM)
	if pubBlock == nil {
		return nil, errors.New("authtoken: failed to decode public key PEM block")
	}
	pubAny, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("authtoken: parsing public key: %w", err)
	}
	publicKey, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("authtoken: public key is not RSA")
	}

	return &Manager{privateKey: privateKey, publicKey: publicKey, issuer: issuer, ttl: ttl}, nil
}

// Issue mints a token scoped to actorID.
func (m *Manager) Issue(actorID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		ActorID: actorID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", fmt.Errorf("authtoken: signing token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies tokenString, rejecting anything not signed
// RS256 by this Manager's key (no "alg:none"/HMAC-confusion acceptance).
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("authtoken: unexpected signing method: %v", t.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
