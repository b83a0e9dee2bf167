// Package credential provides the sources of OAuth2 access tokens the SDK
// authorizes its outbound calls with: service account keys, user refresh
// tokens, the instance metadata server, and anything else implementing
// Credential.
//
// A Credential only knows how to fetch a token. Caching and proactive
// refresh live in package tokencache.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/firekit/pkg/errx"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/aussiebroadwan/firekit/pkg/credential")

// DefaultTokenURL is the OAuth2 token endpoint used by service account and
// refresh token credentials unless overridden.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// DefaultScopes are requested for service account access tokens.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/firebase.messaging",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

// Token is a freshly minted access token. ExpiresIn is in seconds.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Credential produces access tokens. Implementations must be safe for
// concurrent use; the cache calls AccessToken from whichever goroutine
// triggered a refresh.
type Credential interface {
	AccessToken(ctx context.Context) (*Token, error)
}

// ProjectIDProvider is implemented by credentials that know which project
// they belong to.
type ProjectIDProvider interface {
	ProjectID(ctx context.Context) (string, error)
}

// Option customises a credential.
type Option func(*options)

type options struct {
	httpClient *http.Client
	tokenURL   string
	scopes     []string
}

func newOptions(opts []Option) options {
	o := options{
		httpClient: http.DefaultClient,
		tokenURL:   DefaultTokenURL,
		scopes:     DefaultScopes,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithHTTPClient routes every request the credential makes through c.
// Proxies, custom TLS and test servers all hang off this.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTokenURL overrides the OAuth2 token endpoint.
func WithTokenURL(u string) Option {
	return func(o *options) {
		if u != "" {
			o.tokenURL = u
		}
	}
}

// WithScopes overrides the scopes requested for service account tokens.
func WithScopes(scopes ...string) Option {
	return func(o *options) {
		if len(scopes) > 0 {
			o.scopes = scopes
		}
	}
}

// tokenErrorResponse is the RFC 6749 error body.
type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// postForm sends an urlencoded token request and decodes the response.
func postForm(ctx context.Context, hc *http.Client, endpoint string, form url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errx.CredentialFetch(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, errx.CredentialFetch(err, "failed to send token request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errx.CredentialFetch(err, "failed to read token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, tokenHTTPError(resp.StatusCode, body)
	}

	return parseTokenResponse(body)
}

// parseTokenResponse requires a non-empty access_token and a positive
// expires_in.
func parseTokenResponse(body []byte) (*Token, error) {
	var raw struct {
		AccessToken string          `json:"access_token"`
		ExpiresIn   json.RawMessage `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errx.CredentialFetch(err, "malformed token response")
	}

	var expiresIn int64
	if len(raw.ExpiresIn) > 0 {
		var n json.Number
		if err := json.Unmarshal(raw.ExpiresIn, &n); err != nil {
			// Some servers quote it
			var s string
			if json.Unmarshal(raw.ExpiresIn, &s) == nil {
				n = json.Number(s)
			}
		}
		if f, err := n.Float64(); err == nil {
			expiresIn = int64(f)
		}
	}

	if raw.AccessToken == "" || expiresIn <= 0 {
		return nil, errx.CredentialFetch(nil,
			"unexpected token response: missing access_token or expires_in: %s", truncate(body))
	}

	return &Token{AccessToken: raw.AccessToken, ExpiresIn: expiresIn}, nil
}

func tokenHTTPError(status int, body []byte) error {
	var e tokenErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		msg := e.Error
		if e.ErrorDescription != "" {
			msg = fmt.Sprintf("%s (%s)", e.Error, e.ErrorDescription)
		}
		return errx.CredentialFetch(nil, "error fetching access token: status %d: %s", status, msg)
	}
	return errx.CredentialFetch(nil, "error fetching access token: status %d: %s", status, truncate(body))
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
