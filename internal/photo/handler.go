package photo

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/acgallery/service/internal/response"
)

// Handler holds HTTP handlers for photo endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new photo Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get godoc
//
//	@Summary	Get photo
//	@Tags		photos
//	@Produce	json
//	@Param		id	path		string	true	"Photo ID"
//	@Success	200	{object}	response.Envelope{data=WithCompetition}
//	@Failure	404	{object}	response.Envelope
//	@Router		/photos/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err, "failed to fetch photo")
		return
	}
	response.OK(w, p)
}

// Update godoc
//
//	@Summary	Update photo order
//	@Tags		photos
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string		true	"Photo ID"
//	@Param		request	body		UpdateInput	true	"New position"
//	@Success	200		{object}	response.Envelope{data=Photo}
//	@Failure	400		{object}	response.Envelope
//	@Failure	401		{object}	response.Envelope
//	@Failure	404		{object}	response.Envelope
//	@Router		/photos/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "order is required and must be a number")
		return
	}

	p, err := h.svc.UpdateOrder(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		response.FromError(w, r, err, "failed to update photo")
		return
	}
	response.OK(w, p)
}

// Delete godoc
//
//	@Summary		Delete photo
//	@Description	Deletes the original and thumbnail blobs, clears cover references and removes the photo.
//	@Tags			photos
//	@Produce		json
//	@Param			id	path		string	true	"Photo ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/photos/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, err, "failed to delete photo")
		return
	}
	response.Success(w)
}

// Reorder godoc
//
//	@Summary	Reorder photos
//	@Tags		photos
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ReorderInput	true	"New positions"
//	@Success	200		{object}	response.Envelope
//	@Failure	400		{object}	response.Envelope
//	@Failure	401		{object}	response.Envelope
//	@Router		/photos/reorder [patch]
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var in ReorderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "items must be an array")
		return
	}

	if err := h.svc.Reorder(r.Context(), in); err != nil {
		response.FromError(w, r, err, "failed to reorder photos")
		return
	}
	response.Success(w)
}

type bulkDeleteResult struct {
	Deleted int `json:"deleted"`
}

// BulkDelete godoc
//
//	@Summary	Delete several photos
//	@Tags		photos
//	@Accept		json
//	@Produce	json
//	@Param		request	body		BulkDeleteInput	true	"Photo IDs"
//	@Success	200		{object}	response.Envelope{data=bulkDeleteResult}
//	@Failure	400		{object}	response.Envelope
//	@Failure	401		{object}	response.Envelope
//	@Router		/photos/bulk-delete [post]
func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var in BulkDeleteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "ids must be an array")
		return
	}

	n, err := h.svc.BulkDelete(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err, "failed to delete photos")
		return
	}
	response.OK(w, bulkDeleteResult{Deleted: n})
}

// Download godoc
//
//	@Summary		Download a photo
//	@Description	Streams an object from the bucket as an attachment. The url must start with the public base URL.
//	@Tags			photos
//	@Produce		octet-stream
//	@Param			url			query		string	true	"Public URL of the photo"
//	@Param			filename	query		string	false	"Download file name"
//	@Success		200
//	@Failure		400	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/photos/download [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := h.svc.Download(r.Context(), q.Get("url"), q.Get("filename"))
	if err != nil {
		response.FromError(w, r, err, "Download failed")
		return
	}
	defer d.Close()

	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename}))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if d.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, d); err != nil {
		log.Warn().Err(err).Str("filename", d.Filename).Msg("download interrupted")
	}
}
