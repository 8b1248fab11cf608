package upload

import (
	"encoding/json"
	"net/http"

	"github.com/acgallery/service/internal/response"
)

// Handler holds HTTP handlers for the upload endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new upload Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Presign godoc
//
//	@Summary		Request upload URLs
//	@Description	Returns one presigned PUT URL per file, valid for one hour. The browser uploads directly to the bucket.
//	@Tags			photos
//	@Accept			json
//	@Produce		json
//	@Param			request	body		PresignInput	true	"Files to upload"
//	@Success		200		{object}	response.Envelope{data=[]PresignedFile}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/photos/upload [post]
func (h *Handler) Presign(w http.ResponseWriter, r *http.Request) {
	var in PresignInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "competitionId and files are required")
		return
	}

	files, err := h.svc.Presign(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err, "failed to generate upload URLs")
		return
	}
	response.OK(w, files)
}

// Confirm godoc
//
//	@Summary		Confirm uploads
//	@Description	Generates thumbnails for uploaded originals and records the photos after the existing ones.
//	@Tags			photos
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ConfirmInput	true	"Uploaded files"
//	@Success		201		{object}	response.Envelope{data=[]photo.Photo}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		502		{object}	response.Envelope
//	@Router			/photos/confirm [post]
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var in ConfirmInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "competitionId and files are required")
		return
	}

	photos, err := h.svc.Confirm(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err, "failed to confirm uploads")
		return
	}
	response.Created(w, photos)
}
