package identity

import (
	"net/http"
	"strings"

	"github.com/iflastandards/standards-authz/pkg/contextkeys"
)

// TokenMiddleware copies the bearer token from the Authorization header into
// the request context. Requests without one pass through untouched.
func TokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := BearerToken(r); token != "" {
			r = r.WithContext(contextkeys.WithBearerToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

// BearerToken returns the token of a "Bearer <token>" Authorization header
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
