// Package auth issues operator session tokens and checks the worker secret.
package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
)

const issuer = "campaign-panel"

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies operator bearer tokens (HS256).
type Tokens struct {
	Secret []byte
	TTL    time.Duration
	Now    func() time.Time
}

func (t *Tokens) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}

func (t *Tokens) Issue(username string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.TTL)
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify returns the claims of a valid token, or an AuthError.
func (t *Tokens) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, appErrors.NewAuth("token not provided")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, appErrors.NewAuth("token expired")
	default:
		return nil, appErrors.NewAuth("invalid token")
	}
}

// Credentials is the single operator account of the panel.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) Check(username, password string) bool {
	u := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username))
	p := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password))
	return u&p == 1
}

// SecretMatches compares the worker shared secret in constant time.
func SecretMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
