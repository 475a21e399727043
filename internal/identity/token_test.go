package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	signer := NewTokenSigner("test-secret")
	now := time.Now()
	sess := &Session{ID: "s1", UserID: "google:42", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}

	token, err := signer.Sign(sess)
	require.NoError(t, err)

	sid, uid, err := signer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "s1", sid)
	assert.Equal(t, "google:42", uid)
}

func TestTokenSigner_Rejects(t *testing.T) {
	signer := NewTokenSigner("test-secret")
	now := time.Now()

	expired, err := signer.Sign(&Session{ID: "s1", UserID: "u", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	foreign, err := NewTokenSigner("other-secret").Sign(&Session{ID: "s1", UserID: "u", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ID: "s1", Subject: "u", Issuer: tokenIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noSession, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "u", Issuer: tokenIssuer, ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":      "not-a-token",
		"expired":      expired,
		"wrong secret": foreign,
		"alg none":     noneAlg,
		"missing jti":  noSession,
		"empty":        "",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := signer.Parse(token)
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}
