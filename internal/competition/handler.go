package competition

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/acgallery/service/internal/response"
)

// Handler holds HTTP handlers for competition endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new competition Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List godoc
//
//	@Summary		List competitions
//	@Description	Returns competitions, newest date first, with photo counts and resolved covers.
//	@Tags			competitions
//	@Produce		json
//	@Param			yearId	query		string	false	"Restrict to a year"
//	@Success		200		{object}	response.Envelope{data=[]Summary}
//	@Failure		500		{object}	response.Envelope
//	@Router			/competitions [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	comps, err := h.svc.List(r.Context(), r.URL.Query().Get("yearId"))
	if err != nil {
		response.FromError(w, r, err, "failed to fetch competitions")
		return
	}
	response.OK(w, comps)
}

// Create godoc
//
//	@Summary		Create competition
//	@Description	Creates a competition in the year given by yearId, or by year number (created when missing).
//	@Tags			competitions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CreateInput	true	"Competition"
//	@Success		201		{object}	response.Envelope{data=Competition}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Router			/competitions [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	c, err := h.svc.Create(r.Context(), in)
	if err != nil {
		response.FromError(w, r, err, "failed to create competition")
		return
	}
	response.Created(w, c)
}

// Get godoc
//
//	@Summary	Get competition
//	@Tags		competitions
//	@Produce	json
//	@Param		id	path		string	true	"Competition ID"
//	@Success	200	{object}	response.Envelope{data=Detail}
//	@Failure	404	{object}	response.Envelope
//	@Router		/competitions/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Detail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err, "failed to fetch competition")
		return
	}
	response.OK(w, d)
}

// Update godoc
//
//	@Summary		Update competition
//	@Description	Applies the fields present in the body. Renaming regenerates the slug.
//	@Tags			competitions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string	true	"Competition ID"
//	@Param			request	body		Changes	true	"Fields to change"
//	@Success		200		{object}	response.Envelope{data=Competition}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Router			/competitions/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var ch Changes
	if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	c, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), ch)
	if err != nil {
		response.FromError(w, r, err, "failed to update competition")
		return
	}
	response.OK(w, c)
}

// Delete godoc
//
//	@Summary		Delete competition
//	@Description	Deletes the competition's blob folder, then the competition and its photos.
//	@Tags			competitions
//	@Produce		json
//	@Param			id	path		string	true	"Competition ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		502	{object}	response.Envelope
//	@Router			/competitions/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.FromError(w, r, err, "failed to delete competition")
		return
	}
	response.Success(w)
}

// Archive godoc
//
//	@Summary	Download competition as zip
//	@Tags		competitions
//	@Produce	application/zip
//	@Param		id	path	string	true	"Competition ID"
//	@Success	200
//	@Failure	404	{object}	response.Envelope
//	@Router		/competitions/{id}/archive [get]
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Archive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, r, err, "failed to prepare archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	w.WriteHeader(http.StatusOK)

	if err := a.WriteTo(r.Context(), w); err != nil {
		log.Error().Err(err).Str("archive", a.Name).Msg("archive stream aborted")
	}
}
