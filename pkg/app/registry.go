package app

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/jonboulle/clockwork"
)

// RegistryOptions are the defaults apps in a registry inherit.
type RegistryOptions struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
}

// Registry owns a set of named apps and the public key caches they share.
type Registry struct {
	opts    RegistryOptions
	keySets *jwtx.KeySetCache

	mu   sync.Mutex
	apps map[string]*App
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Registry{
		opts:    opts,
		keySets: jwtx.NewKeySetCache(),
		apps:    make(map[string]*App),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default is the process wide registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(RegistryOptions{})
	})
	return defaultRegistry
}

// InitializeApp creates and registers an app. A nil cfg is read from
// FIREBASE_CONFIG. Without WithCredential the credential comes from
// application default discovery.
func (r *Registry) InitializeApp(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		var err error
		if cfg, err = ConfigFromEnv(); err != nil {
			return nil, err
		}
	}

	o := options{
		name:   DefaultAppName,
		logger: r.opts.Logger,
		clock:  r.opts.Clock,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.name == "" {
		return nil, errx.InvalidArgument("app name must be a non-empty string")
	}

	// Checked up front so a duplicate never runs credential discovery
	r.mu.Lock()
	_, exists := r.apps[o.name]
	r.mu.Unlock()
	if exists {
		return nil, duplicateApp(o.name)
	}

	a, err := newApp(r, *cfg, o)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.apps[o.name]; exists {
		a.shutdown()
		return nil, duplicateApp(o.name)
	}
	r.apps[o.name] = a

	o.logger.DebugContext(ctx, "app initialized", "app", o.name)
	return a, nil
}

func duplicateApp(name string) error {
	if name == DefaultAppName {
		return errx.New(errx.KindInvalidArgument, errx.CodeDuplicateApp,
			"the default app already exists; pass a name with WithName to initialize another one")
	}
	return errx.New(errx.KindInvalidArgument, errx.CodeDuplicateApp, "app named %q already exists", name)
}

// App looks an app up by name; "" means the default app.
func (r *Registry) App(name string) (*App, error) {
	if name == "" {
		name = DefaultAppName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.apps[name]
	if !ok {
		return nil, errx.New(errx.KindNotFound, errx.CodeNoApp, "app named %q does not exist", name)
	}
	return a, nil
}

// Apps lists the live apps sorted by name.
func (r *Registry) Apps() []*App {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*App, 0, len(r.apps))
	for _, a := range r.apps {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// DeleteApp stops and removes an app.
func (r *Registry) DeleteApp(name string) error {
	r.mu.Lock()
	a, ok := r.apps[name]
	if ok {
		delete(r.apps, name)
	}
	r.mu.Unlock()

	if !ok {
		return errx.New(errx.KindInvalidArgument, errx.CodeAppDeleted, "app %q has already been deleted", name)
	}

	a.shutdown()
	return nil
}

// Close deletes every app.
func (r *Registry) Close() {
	for _, a := range r.Apps() {
		_ = r.DeleteApp(a.name)
	}
}
