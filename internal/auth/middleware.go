package auth

import (
	"net/http"
	"strings"

	"github.com/sakif/college-forum/internal/model"
	"github.com/sakif/college-forum/internal/session"
)

// CookieName is the HttpOnly cookie holding the session token.
const CookieName = "token"

// RequireAuth rejects requests without a valid session token with 401 and
// otherwise puts the principal on the request context.
//
// MIDDLEWARE PATTERN:
// A middleware takes an http.Handler and returns one that wraps it. Chi
// applies them as a chain: req → M1 → M2 → handler → M2 → M1 → resp.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := principalFromRequest(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"auth_required","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth attaches the principal when a valid token is present and
// lets anonymous requests through unchanged. Services then decide which
// operations need a principal.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, err := principalFromRequest(r, tokens); err == nil {
				r = r.WithContext(session.WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromRequest returns the session token from the cookie, or from an
// "Authorization: Bearer" header for non-browser clients.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func principalFromRequest(r *http.Request, tokens *TokenService) (model.Principal, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return model.Principal{}, http.ErrNoCookie
	}
	return tokens.Validate(token)
}
