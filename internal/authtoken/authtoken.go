// Package authtoken issues and verifies the session tokens carried in the
// auth_token cookie.
package authtoken

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TTL    = 7 * 24 * time.Hour
	issuer = "quoridor"
)

var ErrInvalid = errors.New("invalid token")

type Claims struct {
	Username string `json:"username"`
	Guest    bool   `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	key []byte
	now func() time.Time
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{key: []byte(secret), now: time.Now}
}

// Issue signs a token whose subject is the player's identity (email).
func (i *Issuer) Issue(identity, username string, guest bool) (string, error) {
	now := i.now()
	claims := Claims{
		Username: username,
		Guest:    guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
}

func (i *Issuer) Parse(tok string) (Claims, error) {
	if tok == "" {
		return Claims{}, ErrInvalid
	}
	var c Claims
	t, err := jwt.ParseWithClaims(tok, &c, func(t *jwt.Token) (any, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !t.Valid || c.Subject == "" {
		return Claims{}, ErrInvalid
	}
	return c, nil
}

// CookieName is the cookie that carries the token.
const CookieName = "auth_token"

type ctxKey struct{}

func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the claims stored by WithClaims.
func FromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(Claims)
	return c, ok
}
