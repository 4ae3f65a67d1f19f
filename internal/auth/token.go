// Package auth provides password hashing and the session token codec.
//
// Tokens are stateless: the server keeps no revocation list, so a role
// change only takes effect when a new token is issued. Logout clears the
// cookie client-side and an outstanding token stays valid until expiry.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finance-tracker/internal/models"
)

// ErrInvalidToken is returned when a token fails signature, shape, or
// expiry verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the signed claim set carried by a session token.
type Claims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies session tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec creates a codec signing with the given HMAC secret.
func NewTokenCodec(secret []byte, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: secret, ttl: ttl}
}

// TTL returns the lifetime of tokens minted by this codec.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Mint issues a signed token embedding the user's id, email and role.
func (c *TokenCodec) Mint(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify parses and validates a token string, returning its claims.
// Any failure (bad signature, malformed payload, expired) yields
// ErrInvalidToken.
func (c *TokenCodec) Verify(tokenStr string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
