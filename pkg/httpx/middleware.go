package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/firekit/pkg/slogx"
)

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so the first one listed runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// BearerToken pulls the token out of an Authorization header, "" if there
// is none.
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

// RequireBearer rejects requests without a bearer token, or with one
// accept does not like. A nil accept takes any non-empty token.
func RequireBearer(accept func(token string) bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" || (accept != nil && !accept(tok)) {
				slogx.FromContext(r.Context()).Warn("rejected request without valid bearer token")
				w.Header().Set("WWW-Authenticate", `Bearer realm="https://accounts.google.com/"`)
				WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED",
					"request is missing required authentication credential")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
