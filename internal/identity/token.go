package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "smartbookmarks"

// TokenSigner issues and verifies session tokens. A token names the session
// (jti) and its owner (sub); the session record stays authoritative.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a signer keyed with secret.
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

// Sign issues an HS256 token for s.
func (t *TokenSigner) Sign(s *Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   s.UserID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(s.CreatedAt),
		NotBefore: jwt.NewNumericDate(s.CreatedAt.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenStr and returns the session and user ids it names.
// Any verification failure is reported as ErrNoSession.
func (t *TokenSigner) Parse(tokenStr string) (sessionID, userID string, err error) {
	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return "", "", fmt.Errorf("%w: %w", ErrNoSession, errors.New("token lacks session claims"))
	}
	return claims.ID, claims.Subject, nil
}
