// Package auth decides who may call the reader API. The ingestion core never
// sees it.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Verify(ctx context.Context, token string) error
}

// NoAuthToken is handed out by NoAuth for every login.
const NoAuthToken = "noauth"

// NoAuth accepts everyone. It suits a single-user install behind a trusted
// proxy.
type NoAuth struct{}

func (NoAuth) Login(context.Context, string, string) (string, error) {
	return NoAuthToken, nil
}

func (NoAuth) Verify(context.Context, string) error {
	return nil
}

// JWTAuth checks a single configured account and issues HS256 tokens.
type JWTAuth struct {
	username string
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewJWTAuth(username, password, secret string, ttl time.Duration) *JWTAuth {
	return &JWTAuth{
		username: username,
		password: password,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (a *JWTAuth) Login(_ context.Context, username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !userOK || !passOK {
		return "", ErrUnauthorized
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (a *JWTAuth) Verify(_ context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) {
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	if claims.Subject != a.username {
		return fmt.Errorf("%w: unknown subject", ErrUnauthorized)
	}
	return nil
}
