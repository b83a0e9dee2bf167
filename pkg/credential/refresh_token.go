package credential

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/errx"
	"golang.org/x/oauth2"
)

// RefreshToken is the authorized_user file written by gcloud.
type RefreshToken struct {
	Type         string `json:"type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshTokenCredential runs the refresh_token grant for a user.
type RefreshTokenCredential struct {
	token RefreshToken
	cfg   *oauth2.Config
	opts  options
}

// NewRefreshTokenCredential validates rt. All four fields are required.
func NewRefreshTokenCredential(rt RefreshToken, opts ...Option) (*RefreshTokenCredential, error) {
	switch {
	case rt.ClientID == "":
		return nil, errx.InvalidCredential("refresh token must contain a %q property", "client_id")
	case rt.ClientSecret == "":
		return nil, errx.InvalidCredential("refresh token must contain a %q property", "client_secret")
	case rt.RefreshToken == "":
		return nil, errx.InvalidCredential("refresh token must contain a %q property", "refresh_token")
	case rt.Type == "":
		return nil, errx.InvalidCredential("refresh token must contain a %q property", "type")
	}

	o := newOptions(opts)
	return &RefreshTokenCredential{
		token: rt,
		opts:  o,
		cfg: &oauth2.Config{
			ClientID:     rt.ClientID,
			ClientSecret: rt.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  o.tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}, nil
}

// RefreshTokenFromJSON decodes and validates an authorized_user file.
func RefreshTokenFromJSON(b []byte, opts ...Option) (*RefreshTokenCredential, error) {
	var rt RefreshToken
	if err := json.Unmarshal(b, &rt); err != nil {
		return nil, &errx.Error{
			Kind:    errx.KindInvalidCredential,
			Code:    errx.CodeInvalidCredential,
			Message: "failed to parse refresh token json",
			Err:     err,
		}
	}
	return NewRefreshTokenCredential(rt, opts...)
}

// AccessToken implements Credential.
func (c *RefreshTokenCredential) AccessToken(ctx context.Context) (*Token, error) {
	ctx, span := tracer.Start(ctx, "credential.RefreshToken.AccessToken")
	defer span.End()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.opts.httpClient)
	start := time.Now()

	tok, err := c.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: c.token.RefreshToken}).Token()
	if err != nil {
		span.RecordError(err)
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			code := re.ErrorCode
			if code == "" {
				code = truncate(re.Body)
			}
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, errx.CredentialFetch(err, "error refreshing access token: status %d: %s", status, code)
		}
		return nil, errx.CredentialFetch(err, "error refreshing access token")
	}

	if tok.AccessToken == "" {
		return nil, errx.CredentialFetch(nil, "unexpected token response: missing access_token")
	}

	expiresIn := expiresInFromToken(tok, start)
	if expiresIn <= 0 {
		return nil, errx.CredentialFetch(nil, "unexpected token response: missing expires_in")
	}

	return &Token{AccessToken: tok.AccessToken, ExpiresIn: expiresIn}, nil
}

// expiresInFromToken prefers the raw expires_in field and falls back to the
// absolute expiry the oauth2 package computed from it.
func expiresInFromToken(tok *oauth2.Token, start time.Time) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return int64(math.Round(tok.Expiry.Sub(start).Seconds()))
}

// ClientID identifies the OAuth client the token was granted to.
func (c *RefreshTokenCredential) ClientID() string { return c.token.ClientID }
