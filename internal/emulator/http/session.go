package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/service"
	"github.com/aussiebroadwan/firekit/pkg/httpx"
)

// ProjectHandler serves POST /v1/projects/{project}:{method}. A mux
// wildcard has to be a whole segment, so the method is split off here.
type ProjectHandler struct {
	TokenService *service.TokenService
}

func (h *ProjectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	project, method, ok := strings.Cut(r.PathValue("target"), ":")
	if !ok || method != "createSessionCookie" {
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", "unknown method "+method)
		return
	}
	h.createSessionCookie(w, r, project)
}

// createSessionCookie godoc
//
//	@Summary		Create a session cookie
//	@Description	Exchanges a valid ID token for a session cookie lasting validDuration seconds (5 minutes to 2 weeks).
//	@Tags			sessions
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			project	path		string						true	"Project ID"
//	@Param			request	body		CreateSessionCookieRequest	true	"ID token and duration"
//	@Success		200		{object}	CreateSessionCookieResponse
//	@Failure		400		{object}	httpx.ErrorBody	"INVALID_ID_TOKEN, INVALID_DURATION, ..."
//	@Router			/v1/projects/{project}:createSessionCookie [post].
func (h *ProjectHandler) createSessionCookie(w http.ResponseWriter, r *http.Request, project string) {
	var req CreateSessionCookieRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	validFor := time.Duration(req.ValidDuration.Value) * time.Second
	if !req.ValidDuration.Set {
		validFor = service.MaxSessionCookieDuration
	}

	cookie, err := h.TokenService.CreateSessionCookie(r.Context(), project, req.IDToken, validFor)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, CreateSessionCookieResponse{SessionCookie: cookie})
}
