// Package auth validates bearer tokens and exposes the caller's claims.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds the HS256 secret and the issuer every token must carry.
type Config struct {
	Secret string
	Issuer string
}

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps signature, issuer and expiry failures.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Claims identifies the caller. Subject owns every record a request touches.
type Claims struct {
	Subject   string
	Scopes    []string
	ExpiresAt time.Time
}

// tokenClaims is the JWT body. Scopes are space separated.
type tokenClaims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

func (cfg Config) keyFunc(*jwt.Token) (any, error) {
	return []byte(cfg.Secret), nil
}

// Parse verifies token against cfg.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var body tokenClaims
	_, err := jwt.ParseWithClaims(token, &body, cfg.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if body.Subject == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	return &Claims{
		Subject:   body.Subject,
		Scopes:    strings.Fields(body.Scope),
		ExpiresAt: body.ExpiresAt.Time,
	}, nil
}

// Sign issues an HS256 token for subject valid for ttl.
func Sign(cfg Config, subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	body := tokenClaims{
		Scope: strings.Join(scopes, " "),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, body).SignedString([]byte(cfg.Secret))
}
