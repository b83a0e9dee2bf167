package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/httpx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
)

// JWKSHandler publishes a key set as a JWKS that clients may cache for
// maxAge.
//
//	@Summary		Get public keys
//	@Description	Returns the JSON Web Key Set ID tokens (or session cookies) are signed with.
//	@Tags			keys
//	@Produce		json
//	@Success		200	{object}	jwtx.JWKS	"The JSON Web Key Set"
//	@Header			200	{string}	Cache-Control	"public, max-age=..."
//	@Router			/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com [get]
//	@Router			/v1/sessionCookiePublicKeys [get].
func JWKSHandler(keys *jwtx.KeySet, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.Cacheable(w, maxAge)
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}

// X509Handler publishes the same keys as kid → PEM.
//
//	@Summary		Get public keys as PEM
//	@Description	Returns the ID token signing keys as a map of key id to PEM encoded public key.
//	@Tags			keys
//	@Produce		json
//	@Success		200	{object}	map[string]string	"kid to PEM"
//	@Router			/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com [get].
func X509Handler(keys *jwtx.KeySet, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pems, err := keys.PublicPEMs()
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to encode public keys")
			return
		}
		httpx.Cacheable(w, maxAge)
		httpx.WriteJSON(w, http.StatusOK, pems)
	}
}
