package auth

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/acgallery/service/internal/response"
)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc          *Service
	secureCookie bool
}

// NewHandler creates a new auth Handler. secureCookie marks the session
// cookie Secure; it is set in production.
func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

type loginRequest struct {
	Password string `json:"password" example:"s3cret"`
}

func (h *Handler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login godoc
//
//	@Summary		Admin login
//	@Description	Exchanges the shared admin password for a session cookie valid for seven days.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		loginRequest	true	"Admin password"
//	@Success		200		{object}	response.Envelope
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Router			/auth [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	token, err := h.svc.Login(req.Password)
	if err != nil {
		log.Warn().Str("remote_addr", r.RemoteAddr).Msg("admin login rejected")
		response.FromError(w, r, err, "login failed")
		return
	}

	http.SetCookie(w, h.cookie(token, int(TokenTTL.Seconds())))
	response.Success(w)
}

// Logout godoc
//
//	@Summary	Admin logout
//	@Tags		auth
//	@Produce	json
//	@Success	200	{object}	response.Envelope
//	@Router		/auth [delete]
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.cookie("", -1))
	response.Success(w)
}
