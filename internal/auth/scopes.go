package auth

import (
	"context"
	"slices"
)

// OAuth scopes understood by the API. Write implies read.
const (
	ScopeHealthRead  = "health:read"
	ScopeHealthWrite = "health:write"
)

// HasScope reports whether the token literally carries scope.
func (c *Claims) HasScope(scope string) bool {
	return c != nil && slices.Contains(c.Scopes, scope)
}

// Allows reports whether the caller may act under scope.
func (c *Claims) Allows(scope string) bool {
	if c.HasScope(scope) {
		return true
	}
	return scope == ScopeHealthRead && c.HasScope(ScopeHealthWrite)
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the claims stored by WithClaims.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, _ := ctx.Value(claimsKey{}).(*Claims)
	return claims, claims != nil
}
