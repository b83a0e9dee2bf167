package app

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/firekit/pkg/auth"
	"github.com/aussiebroadwan/firekit/pkg/credential"
	"github.com/jonboulle/clockwork"
)

// DefaultAppName is used when InitializeApp is not given a name.
const DefaultAppName = "[DEFAULT]"

type options struct {
	name          string
	cred          credential.Credential
	httpClient    *http.Client
	logger        *slog.Logger
	clock         clockwork.Clock
	authEndpoints *auth.Endpoints
}

// Option customises a single app.
type Option func(*options)

// WithName names the app. Names are unique within a registry.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithCredential skips application default discovery.
func WithCredential(cred credential.Credential) Option {
	return func(o *options) { o.cred = cred }
}

// WithHTTPClient is the client every outbound request is built on. Its
// transport is wrapped, never replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithAuthEndpoints overrides where the auth client fetches keys and calls
// the account API. It wins over FIREBASE_AUTH_EMULATOR_HOST.
func WithAuthEndpoints(ep auth.Endpoints) Option {
	return func(o *options) { o.authEndpoints = &ep }
}
