// Package app ties a credential, its token cache and the service clients
// built on them together under a name.
//
// Apps live in a Registry. Most programs only ever use Default(), tests
// usually create their own registry so nothing leaks between them.
package app

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/aussiebroadwan/firekit/pkg/auth"
	"github.com/aussiebroadwan/firekit/pkg/credential"
	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/aussiebroadwan/firekit/pkg/tokencache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// App is one initialized configuration. It is safe for concurrent use.
type App struct {
	name     string
	cfg      Config
	opts     options
	registry *Registry

	cache      *tokencache.Cache
	httpClient *http.Client
	baseClient *http.Client

	mu         sync.Mutex
	deleted    bool
	projectID  string
	authClient *auth.Client
}

func newApp(r *Registry, cfg Config, o options) (*App, error) {
	base := o.httpClient
	if base == nil {
		base = &http.Client{}
	}
	baseTransport := base.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	// Untouched by the token cache, for token endpoints and key documents
	plain := &http.Client{
		Transport:     otelhttp.NewTransport(baseTransport),
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}

	cred := o.cred
	if cred == nil {
		var err error
		cred, err = credential.ApplicationDefault(credential.WithHTTPClient(plain))
		if err != nil {
			return nil, err
		}
	}

	cache := tokencache.New(cred, tokencache.Options{
		Clock:  o.clock,
		Logger: o.logger.With("app", o.name),
	})

	authorized := &http.Client{
		Transport:     otelhttp.NewTransport(cache.Transport(baseTransport)),
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
		Timeout:       base.Timeout,
	}

	return &App{
		name:       o.name,
		cfg:        cfg,
		opts:       o,
		registry:   r,
		cache:      cache,
		httpClient: authorized,
		baseClient: plain,
	}, nil
}

// Name of the app within its registry.
func (a *App) Name() string { return a.name }

// Options returns the config the app was initialized with.
func (a *App) Options() Config { return a.cfg }

// Credential the app authorizes with.
func (a *App) Credential() credential.Credential { return a.cache.Credential() }

func (a *App) checkLive() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted {
		return errx.New(errx.KindInvalidArgument, errx.CodeAppDeleted,
			"app %q has already been deleted", a.name)
	}
	return nil
}

// ProjectID works out the project from, in order: the config, the
// credential, GOOGLE_CLOUD_PROJECT / GCLOUD_PROJECT and finally the
// metadata server. The first answer is remembered.
func (a *App) ProjectID(ctx context.Context) (string, error) {
	if err := a.checkLive(); err != nil {
		return "", err
	}

	a.mu.Lock()
	if a.projectID != "" {
		id := a.projectID
		a.mu.Unlock()
		return id, nil
	}
	a.mu.Unlock()

	id, err := a.lookupProjectID(ctx)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.projectID = id
	a.mu.Unlock()
	return id, nil
}

func (a *App) lookupProjectID(ctx context.Context) (string, error) {
	if a.cfg.ProjectID != "" {
		return a.cfg.ProjectID, nil
	}

	cred := a.cache.Credential()
	_, onMetadata := cred.(*credential.ComputeEngineCredential)

	// Asking the metadata server is I/O, so it goes after the environment
	if p, ok := cred.(credential.ProjectIDProvider); ok && !onMetadata {
		if id, err := p.ProjectID(ctx); err == nil && id != "" {
			return id, nil
		}
	}

	for _, env := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT"} {
		if id := os.Getenv(env); id != "" {
			return id, nil
		}
	}

	if onMetadata {
		return cred.(*credential.ComputeEngineCredential).ProjectID(ctx)
	}

	return "", errx.InvalidCredential("unable to determine the project ID for app %q", a.name)
}

// AccessToken returns the app's cached OAuth2 access token.
func (a *App) AccessToken(ctx context.Context, forceRefresh bool) (tokencache.CachedToken, error) {
	if err := a.checkLive(); err != nil {
		return tokencache.CachedToken{}, err
	}
	return a.cache.Token(ctx, forceRefresh)
}

// AddTokenListener calls fn with every new access token, and straight
// away with the current one if there is one.
func (a *App) AddTokenListener(fn tokencache.Listener) (tokencache.ListenerID, error) {
	if err := a.checkLive(); err != nil {
		return 0, err
	}
	return a.cache.AddListener(fn), nil
}

func (a *App) RemoveTokenListener(id tokencache.ListenerID) error {
	if err := a.checkLive(); err != nil {
		return err
	}
	a.cache.RemoveListener(id)
	return nil
}

// HTTPClient sends requests with the app's bearer token attached.
func (a *App) HTTPClient() *http.Client { return a.httpClient }

// Auth returns the app's auth client, creating it on first use.
func (a *App) Auth(ctx context.Context) (*auth.Client, error) {
	if err := a.checkLive(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.authClient != nil {
		c := a.authClient
		a.mu.Unlock()
		return c, nil
	}
	a.mu.Unlock()

	// Verification reports a missing project ID itself, with a better
	// message than we could give here.
	projectID, err := a.ProjectID(ctx)
	if err != nil && !errx.IsInvalidCredential(err) {
		return nil, err
	}

	endpoints := auth.Endpoints{}
	if a.opts.authEndpoints != nil {
		endpoints = *a.opts.authEndpoints
	} else if host := os.Getenv(EnvAuthEmulatorHost); host != "" {
		endpoints = auth.EmulatorEndpoints(host)
	}

	c, err := auth.NewClient(ctx, &auth.Config{
		ProjectID:        projectID,
		Credential:       a.cache.Credential(),
		ServiceAccountID: a.cfg.ServiceAccountID,
		HTTPClient:       a.httpClient,
		KeyHTTPClient:    a.baseClient,
		KeySets:          a.registry.keySets,
		Endpoints:        endpoints,
		Clock:            a.opts.clock,
		Logger:           a.opts.logger.With("app", a.name),
	})
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.authClient == nil {
		a.authClient = c
	}
	return a.authClient, nil
}

// Delete stops the app's background refresh and removes it from its
// registry. Every later call on the app fails.
func (a *App) Delete() error {
	return a.registry.DeleteApp(a.name)
}

func (a *App) shutdown() {
	a.mu.Lock()
	a.deleted = true
	a.mu.Unlock()

	a.cache.Stop()
}
