package jwtx

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("github.com/aussiebroadwan/firekit/pkg/jwtx")

// DefaultUnknownKIDInterval bounds how often a kid we have never seen can
// force a refetch of a still fresh key document.
const DefaultUnknownKIDInterval = 5 * time.Second

// RemoteKeySetOptions tunes a RemoteKeySet. The zero value is usable.
type RemoteKeySetOptions struct {
	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *slog.Logger

	// UnknownKIDInterval is the minimum spacing between refetches caused
	// by an unknown kid while the cached document has not expired.
	UnknownKIDInterval time.Duration
}

// RemoteKeySet is a KeySource backed by a published key document. The
// document is cached until the expiry advertised by Cache-Control max-age
// (minus Age). Concurrent refreshes share a single request.
type RemoteKeySet struct {
	url     string
	client  *http.Client
	clock   clockwork.Clock
	logger  *slog.Logger
	limiter *rate.Limiter
	group   singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// NewRemoteKeySet creates a key set for the document at url. Nothing is
// fetched until the first lookup.
func NewRemoteKeySet(url string, opts RemoteKeySetOptions) *RemoteKeySet {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UnknownKIDInterval <= 0 {
		opts.UnknownKIDInterval = DefaultUnknownKIDInterval
	}

	return &RemoteKeySet{
		url:     url,
		client:  opts.HTTPClient,
		clock:   opts.Clock,
		logger:  opts.Logger,
		limiter: rate.NewLimiter(rate.Every(opts.UnknownKIDInterval), 1),
	}
}

// URL returns the document location.
func (r *RemoteKeySet) URL() string { return r.url }

// Key implements KeySource.
func (r *RemoteKeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	now := r.clock.Now()

	r.mu.RLock()
	fresh := r.keys != nil && now.Before(r.expiresAt)
	key, ok := r.keys[kid]
	r.mu.RUnlock()

	if fresh {
		if ok {
			return key, nil
		}
		// The platform may have rotated keys ahead of our expiry, but a
		// flood of garbage kids must not turn into a flood of fetches.
		if !r.limiter.AllowN(now, 1) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
		}
	}

	keys, err := r.load(ctx, kid, fresh)
	if err != nil {
		return nil, err
	}

	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
}

// Refresh refetches the document unconditionally. Callers arriving while a
// fetch is in flight wait for that fetch instead of starting another one.
func (r *RemoteKeySet) Refresh(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	return r.do(ctx, func() (any, error) {
		// Detach so one caller giving up doesn't fail everyone else
		return r.fetch(context.WithoutCancel(ctx))
	})
}

// load fetches the document unless a fetch that finished while the caller
// waited to enter the group already left fresh keys. When needKID is set
// the fresh keys must also hold kid.
func (r *RemoteKeySet) load(ctx context.Context, kid string, needKID bool) (map[string]*rsa.PublicKey, error) {
	return r.do(ctx, func() (any, error) {
		r.mu.RLock()
		keys := r.keys
		fresh := keys != nil && r.clock.Now().Before(r.expiresAt)
		_, ok := keys[kid]
		r.mu.RUnlock()

		if fresh && (ok || !needKID) {
			return keys, nil
		}
		return r.fetch(context.WithoutCancel(ctx))
	})
}

func (r *RemoteKeySet) do(ctx context.Context, fn func() (any, error)) (map[string]*rsa.PublicKey, error) {
	ch := r.group.DoChan("keys", fn)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrKeyFetch, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[string]*rsa.PublicKey), nil
	}
}

func (r *RemoteKeySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	ctx, span := tracer.Start(ctx, "jwtx.RemoteKeySet.fetch")
	span.SetAttributes(attribute.String("url", r.url))
	defer span.End()

	keys, maxAge, err := r.download(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.WarnContext(ctx, "public key fetch failed", "url", r.url, "error", err)
		return nil, err
	}

	r.mu.Lock()
	r.keys = keys
	r.expiresAt = r.clock.Now().Add(maxAge)
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "public keys refreshed", "url", r.url, "keys", len(keys), "max_age", maxAge)
	return keys, nil
}

func (r *RemoteKeySet) download(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read body: %v", ErrKeyFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, 0, fmt.Errorf("%w: status %d: %s", ErrKeyFetch, resp.StatusCode, truncate(body))
	}

	keys, err := ParseKeyDocument(body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrKeyFetch, err)
	}

	return keys, CacheLifetime(resp.Header), nil
}

// CacheLifetime works out how long a response may be reused from its
// Cache-Control max-age and Age headers. Missing or unparsable headers
// mean the response is not reusable at all.
func CacheLifetime(h http.Header) time.Duration {
	var maxAge int64 = -1
	for _, directive := range strings.Split(h.Get("Cache-Control"), ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		n, err := strconv.ParseInt(strings.Trim(value, `"`), 10, 64)
		if err != nil {
			return 0
		}
		maxAge = n
		break
	}
	if maxAge <= 0 {
		return 0
	}

	if age, err := strconv.ParseInt(h.Get("Age"), 10, 64); err == nil && age > 0 {
		maxAge -= age
	}
	if maxAge <= 0 {
		return 0
	}
	return time.Duration(maxAge) * time.Second
}

func truncate(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// KeySetCache hands out one RemoteKeySet per document URL so every client
// in the process shares the same cached keys.
type KeySetCache struct {
	mu   sync.Mutex
	sets map[string]*RemoteKeySet
}

// NewKeySetCache returns an empty cache.
func NewKeySetCache() *KeySetCache {
	return &KeySetCache{sets: make(map[string]*RemoteKeySet)}
}

// Get returns the shared key set for url, creating it with opts on first
// use. Options passed on later calls for the same url are ignored.
func (c *KeySetCache) Get(url string, opts RemoteKeySetOptions) *RemoteKeySet {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ks, ok := c.sets[url]; ok {
		return ks
	}
	ks := NewRemoteKeySet(url, opts)
	c.sets[url] = ks
	return ks
}

// Len reports how many documents are being tracked.
func (c *KeySetCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}
