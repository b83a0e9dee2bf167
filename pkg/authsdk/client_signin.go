package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// SignInWithCustomToken exchanges a custom token minted by a backend for
// an ID token. The account is created on first sign in.
func (c *SDKClient) SignInWithCustomToken(ctx context.Context, customToken string) (*SignInResult, error) {
	body, err := json.Marshal(signInRequest{Token: customToken, ReturnSecureToken: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/accounts:signInWithCustomToken",
		bytes.NewReader(body), map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, err
	}

	var out signInResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	secs, err := strconv.ParseInt(out.ExpiresIn, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expiresIn %q: %w", out.ExpiresIn, err)
	}

	return &SignInResult{
		IDToken:   out.IDToken,
		ExpiresIn: time.Duration(secs) * time.Second,
		LocalID:   out.LocalID,
		IsNewUser: out.IsNewUser,
	}, nil
}
