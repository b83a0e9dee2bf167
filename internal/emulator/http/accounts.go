package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/domain"
	"github.com/aussiebroadwan/firekit/internal/emulator/service"
	"github.com/aussiebroadwan/firekit/pkg/httpx"
)

// AccountsHandler serves the admin account endpoints under
// /v1/projects/{project}/accounts.
type AccountsHandler struct {
	AccountService *service.AccountService
}

// HandleLookup godoc
//
//	@Summary		Look up accounts
//	@Description	Returns the accounts with the given local ids. Unknown ids are left out.
//	@Tags			accounts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			project	path		string			true	"Project ID"
//	@Param			request	body		LookupRequest	true	"Local ids"
//	@Success		200		{object}	LookupResponse
//	@Failure		401		{object}	httpx.ErrorBody
//	@Router			/v1/projects/{project}/accounts:lookup [post].
func (h *AccountsHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	accounts, err := h.AccountService.Lookup(r.Context(), r.PathValue("project"), req.LocalID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := LookupResponse{Kind: "identitytoolkit#GetAccountInfoResponse"}
	for _, a := range accounts {
		resp.Users = append(resp.Users, userInfo(a))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleUpdate godoc
//
//	@Summary		Update an account
//	@Description	Changes the revocation cutoff (validSince, seconds), the disabled flag or the custom claims of an account.
//	@Tags			accounts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			project	path		string			true	"Project ID"
//	@Param			request	body		UpdateRequest	true	"Fields to change"
//	@Success		200		{object}	UpdateResponse
//	@Failure		400		{object}	httpx.ErrorBody	"USER_NOT_FOUND, INVALID_CLAIMS, ..."
//	@Failure		401		{object}	httpx.ErrorBody
//	@Router			/v1/projects/{project}/accounts:update [post].
func (h *AccountsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u := domain.AccountUpdate{
		LocalID:          req.LocalID,
		Disabled:         req.DisableUser,
		CustomAttributes: req.CustomAttributes,
		DisplayName:      req.DisplayName,
		Email:            req.Email,
		EmailVerified:    req.EmailVerified,
	}
	if req.ValidSince.Set {
		since := time.Unix(req.ValidSince.Value, 0).UTC()
		u.ValidSince = &since
	}

	a, err := h.AccountService.Update(r.Context(), r.PathValue("project"), u)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, UpdateResponse{
		Kind:    "identitytoolkit#SetAccountInfoResponse",
		LocalID: a.LocalID,
	})
}

// HandleDelete godoc
//
//	@Summary		Delete an account
//	@Tags			accounts
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			project	path		string			true	"Project ID"
//	@Param			request	body		DeleteRequest	true	"Local id"
//	@Success		200		{object}	DeleteResponse
//	@Failure		400		{object}	httpx.ErrorBody	"USER_NOT_FOUND"
//	@Router			/v1/projects/{project}/accounts:delete [post].
func (h *AccountsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.AccountService.Delete(r.Context(), r.PathValue("project"), req.LocalID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, DeleteResponse{Kind: "identitytoolkit#DeleteAccountResponse"})
}

func userInfo(a domain.Account) UserInfo {
	u := UserInfo{
		LocalID:          a.LocalID,
		Email:            a.Email,
		EmailVerified:    a.EmailVerified,
		DisplayName:      a.DisplayName,
		Disabled:         a.Disabled,
		CreatedAt:        strconv.FormatInt(a.CreatedAt.UnixMilli(), 10),
		CustomAttributes: a.CustomAttributes,
	}
	if !a.ValidSince.IsZero() {
		u.ValidSince = strconv.FormatInt(a.ValidSince.Unix(), 10)
	}
	if a.LastLoginAt != nil {
		u.LastLoginAt = strconv.FormatInt(a.LastLoginAt.UnixMilli(), 10)
	}
	return u
}
