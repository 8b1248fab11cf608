package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acgallery/service/internal/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAdminAPI(t *testing.T) {
	svc := auth.NewService("s3cret", "signing-key")
	token, err := svc.Login("s3cret")
	require.NoError(t, err)
	gate := RequireAdminAPI(svc)(okHandler())

	cases := []struct {
		name   string
		method string
		path   string
		setup  func(*http.Request)
		want   int
	}{
		{"public read", http.MethodGet, "/api/years", nil, http.StatusNoContent},
		{"login", http.MethodPost, "/api/auth", nil, http.StatusNoContent},
		{"logout", http.MethodDelete, "/api/auth", nil, http.StatusNoContent},
		{"anonymous write", http.MethodPost, "/api/years", nil, http.StatusUnauthorized},
		{"anonymous delete", http.MethodDelete, "/api/photos/x", nil, http.StatusUnauthorized},
		{"bad cookie", http.MethodPatch, "/api/photos/reorder", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "forged"})
		}, http.StatusUnauthorized},
		{"cookie", http.MethodPost, "/api/years", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
		}, http.StatusNoContent},
		{"bearer", http.MethodDelete, "/api/years/x", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.setup != nil {
				tc.setup(req)
			}
			rec := httptest.NewRecorder()
			gate.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"success":false,"error":"Unauthorized"}`, rec.Body.String())
			}
		})
	}
}

func TestRequireAdminPage(t *testing.T) {
	svc := auth.NewService("s3cret", "signing-key")
	token, err := svc.Login("s3cret")
	require.NoError(t, err)
	gate := RequireAdminPage(svc)(okHandler())

	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/photos", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/login", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(req))

	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(req))
}

func TestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/years", nil))

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":15`)
	assert.Contains(t, out, `"path":"/api/years"`)
	assert.Contains(t, out, `"level":"warn"`)
}
