package middleware

import (
	"net/http"
	"strings"

	"github.com/acgallery/service/internal/auth"
	"github.com/acgallery/service/internal/response"
)

// TokenVerifier checks a session token; *auth.Service implements it.
type TokenVerifier interface {
	Verify(token string) error
}

// LoginPath is where unauthenticated admin page requests are sent.
const LoginPath = "/admin/login"

// TokenFromRequest returns the session token from the cookie, or from a
// Bearer Authorization header when no cookie is present.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(auth.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func readOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// RequireAdminAPI guards mutating API requests. Reads are public, as is
// everything under /api/auth.
func RequireAdminAPI(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if readOnly(r.Method) || strings.HasPrefix(r.URL.Path, "/api/auth") {
				next.ServeHTTP(w, r)
				return
			}
			if err := v.Verify(TokenFromRequest(r)); err != nil {
				response.Unauthorized(w, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminPage guards the admin pages, redirecting to the login page
// when the session is missing or invalid.
func RequireAdminPage(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, LoginPath) {
				next.ServeHTTP(w, r)
				return
			}
			if err := v.Verify(TokenFromRequest(r)); err != nil {
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
