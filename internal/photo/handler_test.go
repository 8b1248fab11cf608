package photo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acgallery/service/internal/response"
	"github.com/acgallery/service/internal/storage/storagetest"
)

func newTestRouter(repo Store, blobs *storagetest.Memory) http.Handler {
	h := NewHandler(NewService(repo, blobs))
	r := chi.NewRouter()
	r.Get("/photos/download", h.Download)
	r.Patch("/photos/reorder", h.Reorder)
	r.Get("/photos/{id}", h.Get)
	r.Patch("/photos/{id}", h.Update)
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestDownloadHandlerSetsAttachmentHeaders(t *testing.T) {
	blobs := storagetest.New()
	blobs.Put("photos/2024/coupe/originals/x_a.jpg", []byte("jpeg-bytes"), "image/jpeg")
	router := newTestRouter(newFakeStore(), blobs)

	q := url.Values{
		"url":      {storagetest.PublicBase + "/photos/2024/coupe/originals/x_a.jpg"},
		"filename": {"podium.jpg"},
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/photos/download?"+q.Encode(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=podium.jpg`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
}

func TestDownloadHandlerForbidsForeignURL(t *testing.T) {
	router := newTestRouter(newFakeStore(), storagetest.New())

	q := url.Values{"url": {"https://example.org/secret.jpg"}}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/photos/download?"+q.Encode(), nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "Invalid URL", env.Error)
}

func TestGetHandlerUnknownPhoto(t *testing.T) {
	router := newTestRouter(newFakeStore(), storagetest.New())

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/photos/"+id, nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "photo not found", decodeEnvelope(t, rec).Error)
	}
}

func TestReorderHandler(t *testing.T) {
	repo := newFakeStore()
	p := repo.add(uuid.NewString(), 0, timeZero)
	router := newTestRouter(repo, storagetest.New())

	body := `{"items":[{"id":"` + p.ID + `","order":4}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/photos/reorder", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeEnvelope(t, rec).Success)
	assert.Equal(t, 4, repo.photos[p.ID].Order)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/photos/reorder", strings.NewReader(`{"items":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
