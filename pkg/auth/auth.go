// Package auth mints custom tokens and verifies ID tokens and session
// cookies issued by the identity platform.
//
// Verification only ever uses public keys fetched from the platform; the
// access token machinery is involved only when a revocation check or an
// account API call goes over the wire.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/firekit/pkg/credential"
	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/aussiebroadwan/firekit/pkg/auth")

// Default platform endpoints.
const (
	DefaultIDTokenKeysURL       = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	DefaultSessionCookieKeysURL = "https://identitytoolkit.googleapis.com/v1/sessionCookiePublicKeys"
	DefaultIdentityToolkitURL   = "https://identitytoolkit.googleapis.com/v1"
	DefaultIAMURL               = "https://iamcredentials.googleapis.com/v1"

	idTokenIssuerPrefix       = "https://securetoken.google.com/"
	sessionCookieIssuerPrefix = "https://session.firebase.google.com/"
)

// Endpoints groups every URL the client talks to. Empty fields take the
// defaults above.
type Endpoints struct {
	IDTokenKeysURL       string
	SessionCookieKeysURL string
	IdentityToolkitURL   string
	IAMURL               string
}

// EmulatorEndpoints points the key and account endpoints at an emulator
// listening on host (host:port or a full http URL). Blob signing still
// goes to IAM.
func EmulatorEndpoints(host string) Endpoints {
	base := host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	base = strings.TrimSuffix(base, "/")

	return Endpoints{
		IDTokenKeysURL:       base + "/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com",
		SessionCookieKeysURL: base + "/v1/sessionCookiePublicKeys",
		IdentityToolkitURL:   base + "/v1",
	}
}

func (e Endpoints) withDefaults() Endpoints {
	if e.IDTokenKeysURL == "" {
		e.IDTokenKeysURL = DefaultIDTokenKeysURL
	}
	if e.SessionCookieKeysURL == "" {
		e.SessionCookieKeysURL = DefaultSessionCookieKeysURL
	}
	if e.IdentityToolkitURL == "" {
		e.IdentityToolkitURL = DefaultIdentityToolkitURL
	}
	if e.IAMURL == "" {
		e.IAMURL = DefaultIAMURL
	}
	e.IdentityToolkitURL = strings.TrimSuffix(e.IdentityToolkitURL, "/")
	e.IAMURL = strings.TrimSuffix(e.IAMURL, "/")
	return e
}

// Config wires a Client.
type Config struct {
	// ProjectID is required for verification and account calls.
	ProjectID string

	// Credential is consulted for a local signing key. Optional.
	Credential credential.Credential

	// Signer overrides signer discovery for custom tokens.
	Signer CryptoSigner

	// ServiceAccountID makes custom tokens go through IAM signBlob as
	// this service account when no private key is available.
	ServiceAccountID string

	// HTTPClient must add authorization to outgoing requests; it is used
	// for the account API and IAM.
	HTTPClient *http.Client

	// KeyHTTPClient fetches public keys. Defaults to http.DefaultClient.
	KeyHTTPClient *http.Client

	// KeySets shares fetched public keys between clients.
	KeySets *jwtx.KeySetCache

	Endpoints Endpoints
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Client is the entry point for token minting and verification.
type Client struct {
	projectID string
	signer    CryptoSigner
	endpoints Endpoints
	hc        *http.Client
	clock     clockwork.Clock
	logger    *slog.Logger

	idTokens       *tokenVerifier
	sessionCookies *tokenVerifier
}

// NewClient builds a client. It does no I/O.
func NewClient(_ context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	keyHC := cfg.KeyHTTPClient
	if keyHC == nil {
		keyHC = http.DefaultClient
	}
	keySets := cfg.KeySets
	if keySets == nil {
		keySets = jwtx.NewKeySetCache()
	}

	endpoints := cfg.Endpoints.withDefaults()

	keyOpts := jwtx.RemoteKeySetOptions{HTTPClient: keyHC, Clock: clock, Logger: logger}

	c := &Client{
		projectID: cfg.ProjectID,
		signer:    resolveSigner(cfg, hc, endpoints),
		endpoints: endpoints,
		hc:        hc,
		clock:     clock,
		logger:    logger,
	}

	c.idTokens = newTokenVerifier(idTokenKind, cfg.ProjectID, idTokenIssuerPrefix,
		keySets.Get(endpoints.IDTokenKeysURL, keyOpts), clock)
	c.sessionCookies = newTokenVerifier(sessionCookieKind, cfg.ProjectID, sessionCookieIssuerPrefix,
		keySets.Get(endpoints.SessionCookieKeysURL, keyOpts), clock)

	return c, nil
}

// ProjectID the client verifies tokens for.
func (c *Client) ProjectID() string { return c.projectID }

func (c *Client) requireProjectID(what string) error {
	if c.projectID == "" {
		return errx.InvalidCredential(
			"a project ID is required to %s; set it in the app config, through a service account "+
				"credential, or with the GOOGLE_CLOUD_PROJECT environment variable", what)
	}
	return nil
}
