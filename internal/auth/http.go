package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

func writeAuthError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// TokenFromRequest reads the bearer token from the Authorization header, falling back
// to the token query parameter (EventSource cannot set headers).
func TokenFromRequest(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		tok, err := bearerToken(h)
		if err != nil {
			return "", false
		}
		return tok, true
	}
	if tok := strings.TrimSpace(r.URL.Query().Get("token")); tok != "" {
		return tok, true
	}
	return "", false
}

// Middleware rejects requests without a valid token and stores the principal in the request context.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := TokenFromRequest(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "missing or malformed bearer token")
				return
			}
			p, err := ParseToken(tok, secret)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireKinds allows the request through only for the listed principal kinds.
// It must run after Middleware.
func RequireKinds(kinds ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			for _, k := range kinds {
				if p.Kind == k {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeAuthError(w, http.StatusForbidden, "forbidden")
		})
	}
}
