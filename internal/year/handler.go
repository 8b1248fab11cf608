package year

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acgallery/service/internal/response"
)

// Handler holds HTTP handlers for year endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new year Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List godoc
//
//	@Summary		List years
//	@Description	Returns every year, newest first, with competition and photo counts and the resolved cover thumbnail.
//	@Tags			years
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]Summary}
//	@Failure		500	{object}	response.Envelope
//	@Router			/years [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	years, err := h.svc.List(r.Context())
	if err != nil {
		response.FromError(w, r, err, "failed to fetch years")
		return
	}
	response.OK(w, years)
}

// Create godoc
//
//	@Summary		Create year
//	@Tags			years
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateInput	true	"Year number"
//	@Success		201		{object}	response.Envelope{data=Year}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Router			/years [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "year is required and must be a number")
		return
	}

	y, err := h.svc.Create(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err, "failed to create year")
		return
	}
	response.Created(w, y)
}

// Get godoc
//
//	@Summary	Get year
//	@Tags		years
//	@Produce	json
//	@Param		id	path		string	true	"Year id"
//	@Success	200	{object}	response.Envelope{data=Year}
//	@Failure	404	{object}	response.Envelope
//	@Router		/years/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	y, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err, "failed to fetch year")
		return
	}
	response.OK(w, y)
}

// Update godoc
//
//	@Summary		Update year
//	@Description	Partial update. Only "year" and "coverPhotoId" are accepted; send "coverPhotoId": null to go back to the automatic cover.
//	@Tags			years
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string	true	"Year id"
//	@Param			request	body		Changes	true	"Fields to change"
//	@Success		200		{object}	response.Envelope{data=Year}
//	@Failure		400		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Router			/years/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var ch Changes
	if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	y, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), ch)
	if err != nil {
		response.FromError(w, r, err, "failed to update year")
		return
	}
	response.OK(w, y)
}

// Delete godoc
//
//	@Summary		Delete year
//	@Description	Deletes the year, its competitions and photos, and every stored object under photos/{year}/.
//	@Tags			years
//	@Produce		json
//	@Param			id	path		string	true	"Year id"
//	@Success		200	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/years/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, err, "failed to delete year")
		return
	}
	response.Success(w)
}
