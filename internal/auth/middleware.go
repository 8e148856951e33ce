package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware authenticates requests with a bearer token. Requests matched by
// Skip pass through without claims.
type Middleware struct {
	Config Config
	Skip   func(*http.Request) bool
}

// NewMiddleware returns a Middleware verifying tokens against cfg.
func NewMiddleware(cfg Config, skip func(*http.Request) bool) Middleware {
	return Middleware{Config: cfg, Skip: skip}
}

// SkipProbes matches the liveness and metrics endpoints.
func SkipProbes(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	}
	return false
}

// Wrap rejects unauthenticated requests with 401 and stores claims on the
// context of the rest.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip != nil && m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := Parse(bearerToken(r), m.Config)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="healthsync"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"type": "unauthorized", "detail": err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return token
}

