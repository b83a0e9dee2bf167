package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/firekit/internal/emulator/service"
	"github.com/aussiebroadwan/firekit/pkg/httpx"
)

// SignInHandler serves POST /v1/accounts:signInWithCustomToken.
type SignInHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		Sign in with a custom token
//	@Description	Exchanges a custom token minted by the admin SDK for an ID token. The account is created on first sign in.
//	@Tags			accounts
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SignInWithCustomTokenRequest	true	"Custom token"
//	@Success		200		{object}	SignInWithCustomTokenResponse
//	@Failure		400		{object}	httpx.ErrorBody	"INVALID_CUSTOM_TOKEN, USER_DISABLED, ..."
//	@Failure		429		{object}	httpx.ErrorBody	"QUOTA_EXCEEDED"
//	@Router			/v1/accounts:signInWithCustomToken [post].
func (h *SignInHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req SignInWithCustomTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.TokenService.SignInWithCustomToken(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, SignInWithCustomTokenResponse{
		Kind:      "identitytoolkit#VerifyCustomTokenResponse",
		IDToken:   res.IDToken,
		ExpiresIn: strconv.FormatInt(int64(res.ExpiresIn.Seconds()), 10),
		IsNewUser: res.IsNewUser,
	})
}
