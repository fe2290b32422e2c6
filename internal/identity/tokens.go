// Package identity issues and verifies the anonymous identities users carry.
// An identity is a random UUID wrapped in a signed JWT; the ID is the stable
// identifier everything else (queue entries, room membership) keys on.
package identity

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

const tokenTTL = 72 * time.Hour

// TokenService mints anonymous IDs and the JWTs that carry them.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService creates a token service signing with the given secret.
func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer}
}

// NewAnonID generates a fresh anonymous user identifier.
func (t *TokenService) NewAnonID() string {
	return uuid.New().String()
}

// Issue signs a JWT carrying the anonymous ID.
func (t *TokenService) Issue(anonID string) (string, error) {
	claims := jwt.MapClaims{
		"anon_id": anonID,
		"exp":     time.Now().Add(tokenTTL).Unix(),
		"iss":     t.issuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify validates a token and returns the anonymous ID it carries.
func (t *TokenService) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	anonID, ok := claims["anon_id"].(string)
	if !ok || anonID == "" {
		return "", ErrInvalidToken
	}
	return anonID, nil
}
