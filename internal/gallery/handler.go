package gallery

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/acgallery/service/internal/response"
)

// Handler holds HTTP handlers for the gallery views.
type Handler struct {
	svc *Service
}

// NewHandler creates a new gallery Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Year godoc
//
//	@Summary	Year page
//	@Tags		gallery
//	@Produce	json
//	@Param		year	path		int	true	"Year number"
//	@Success	200		{object}	response.Envelope{data=YearPage}
//	@Failure	404		{object}	response.Envelope
//	@Router		/gallery/{year} [get]
func (h *Handler) Year(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Year(r.Context(), chi.URLParam(r, "year"))
	if err != nil {
		response.FromError(w, r, err, "failed to fetch year")
		return
	}
	response.OK(w, page)
}

// Competition godoc
//
//	@Summary	Competition page
//	@Tags		gallery
//	@Produce	json
//	@Param		year	path		int		true	"Year number"
//	@Param		slug	path		string	true	"Competition slug"
//	@Success	200		{object}	response.Envelope{data=competition.Detail}
//	@Failure	404		{object}	response.Envelope
//	@Router		/gallery/{year}/{slug} [get]
func (h *Handler) Competition(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Competition(r.Context(), chi.URLParam(r, "year"), chi.URLParam(r, "slug"))
	if err != nil {
		response.FromError(w, r, err, "failed to fetch competition")
		return
	}
	response.OK(w, d)
}

// Stats godoc
//
//	@Summary	Dashboard statistics
//	@Tags		gallery
//	@Produce	json
//	@Success	200	{object}	response.Envelope{data=Stats}
//	@Router		/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		response.FromError(w, r, err, "failed to compute statistics")
		return
	}
	response.OK(w, st)
}
