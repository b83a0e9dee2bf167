package authsdk

import (
	"context"
	"net/http"
)

const (
	idTokenKeysPath       = "/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	sessionCookieKeysPath = "/v1/sessionCookiePublicKeys"
)

// GetJWKS retrieves the keys ID tokens are signed with.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	return c.getJWKS(ctx, idTokenKeysPath)
}

// GetSessionCookieJWKS retrieves the keys session cookies are signed with.
func (c *SDKClient) GetSessionCookieJWKS(ctx context.Context) (*JWKSResponse, error) {
	return c.getJWKS(ctx, sessionCookieKeysPath)
}

func (c *SDKClient) getJWKS(ctx context.Context, path string) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}

	return &jwks, nil
}
