// Package tokencache keeps one access token per credential warm.
//
// A Cache hands out the cached token while it is more than RefreshMargin
// away from expiry, fetches a new one otherwise, and arms a timer so the
// next refresh happens in the background before anybody has to wait for
// it. Concurrent callers that find the cache cold share a single fetch.
package tokencache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/credential"
	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// RefreshMargin is how long before expiry a token stops being handed out
// and the background refresh fires.
const RefreshMargin = 5 * time.Minute

// CachedToken is an access token plus the moment it stops working.
type CachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

// ExpiresAtMillis is ExpiresAt as epoch milliseconds.
func (t CachedToken) ExpiresAtMillis() int64 { return t.ExpiresAt.UnixMilli() }

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// Listener receives every newly cached access token.
type Listener func(accessToken string)

// Options tunes a Cache. The zero value is usable.
type Options struct {
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Cache owns the cached token of one credential.
type Cache struct {
	cred   credential.Credential
	clock  clockwork.Clock
	logger *slog.Logger
	group  singleflight.Group

	mu        sync.Mutex
	token     *CachedToken
	timer     clockwork.Timer
	listeners map[ListenerID]Listener
	nextID    ListenerID
	stopped   bool
}

// New wraps cred. No token is fetched until the first call to Token.
func New(cred credential.Credential, opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Cache{
		cred:      cred,
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "tokencache"),
		listeners: make(map[ListenerID]Listener),
	}
}

// Credential returns the wrapped credential.
func (c *Cache) Credential() credential.Credential { return c.cred }

// Token returns a usable access token.
//
// Without forceRefresh a cached token more than RefreshMargin from expiry
// is returned without any I/O. Otherwise a fetch runs, shared with any
// other caller already waiting on one. If that fetch fails but the cached
// token has not actually expired yet, a non-forced caller still gets the
// cached token.
func (c *Cache) Token(ctx context.Context, forceRefresh bool) (CachedToken, error) {
	if !forceRefresh {
		if tok, ok := c.fresh(); ok {
			return tok, nil
		}
	}

	tok, err := c.refresh(ctx, forceRefresh)
	if err == nil {
		return tok, nil
	}

	if !forceRefresh {
		if stale, ok := c.unexpired(); ok {
			c.logger.WarnContext(ctx, "serving cached access token after refresh failure",
				"expires_at", stale.ExpiresAt, "error", err)
			return stale, nil
		}
	}
	return CachedToken{}, err
}

// Cached returns the current token, if any, without fetching.
func (c *Cache) Cached() (CachedToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return CachedToken{}, false
	}
	return *c.token, true
}

// AddListener registers fn for every future token. If a token is already
// cached fn is called with it straight away.
func (c *Cache) AddListener(fn Listener) ListenerID {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn

	var current string
	if c.token != nil {
		current = c.token.AccessToken
	}
	c.mu.Unlock()

	if current != "" {
		fn(current)
	}
	return id
}

// RemoveListener unregisters a listener. Unknown ids are ignored.
func (c *Cache) RemoveListener(id ListenerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, id)
}

// Stop cancels the refresh timer. Token keeps working afterwards, but
// fetched tokens are no longer cached and nothing is rescheduled.
func (c *Cache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.listeners = make(map[ListenerID]Listener)
}

// Stopped reports whether Stop has been called.
func (c *Cache) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Cache) fresh() (CachedToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil {
		return CachedToken{}, false
	}
	if c.clock.Now().Add(RefreshMargin).Before(c.token.ExpiresAt) {
		return *c.token, true
	}
	return CachedToken{}, false
}

func (c *Cache) unexpired() (CachedToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil || !c.clock.Now().Before(c.token.ExpiresAt) {
		return CachedToken{}, false
	}
	return *c.token, true
}

// refresh fetches through the singleflight group. The fetch itself is
// detached from ctx so one impatient caller cannot fail the others.
func (c *Cache) refresh(ctx context.Context, force bool) (CachedToken, error) {
	ch := c.group.DoChan("token", func() (any, error) {
		// A flight that finished between our freshness check and now has
		// already done the work.
		if !force {
			if tok, ok := c.fresh(); ok {
				return tok, nil
			}
		}
		return c.fetch(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return CachedToken{}, errx.CredentialFetch(ctx.Err(), "gave up waiting for access token")
	case res := <-ch:
		if res.Err != nil {
			return CachedToken{}, res.Err
		}
		return res.Val.(CachedToken), nil
	}
}

func (c *Cache) fetch(ctx context.Context) (CachedToken, error) {
	start := c.clock.Now()

	raw, err := c.callCredential(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "access token fetch failed", "error", err)
		return CachedToken{}, err
	}

	tok := CachedToken{
		AccessToken: raw.AccessToken,
		ExpiresAt:   start.Add(time.Duration(raw.ExpiresIn) * time.Second),
	}

	listeners := c.store(tok)
	for _, fn := range listeners {
		fn(tok.AccessToken)
	}

	c.logger.DebugContext(ctx, "access token refreshed", "expires_at", tok.ExpiresAt)
	return tok, nil
}

// callCredential shields the cache from whatever a custom credential does:
// untyped errors, panics and nonsense tokens all become SDK errors.
func (c *Cache) callCredential(ctx context.Context) (tok *credential.Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			tok = nil
			err = errx.CredentialFetch(fmt.Errorf("panic: %v", r), "credential panicked while fetching access token")
		}
	}()

	tok, err = c.cred.AccessToken(ctx)
	if err != nil {
		var typed *errx.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, errx.CredentialFetch(err, "failed to fetch access token")
	}

	if tok == nil || tok.AccessToken == "" || tok.ExpiresIn <= 0 {
		return nil, errx.InvalidCredential("Invalid access token generated")
	}
	return tok, nil
}

// store caches tok and rearms the timer, both under the lock so there is
// never more than one pending refresh. It returns the listeners to notify.
func (c *Cache) store(tok CachedToken) []Listener {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return nil
	}

	c.token = &tok

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	// A token already inside the margin would fire immediately and loop
	// on every fetch, so only schedule when there is time to wait.
	if delay := tok.ExpiresAt.Sub(c.clock.Now()) - RefreshMargin; delay > 0 {
		c.timer = c.clock.AfterFunc(delay, c.proactiveRefresh)
	}

	out := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func (c *Cache) proactiveRefresh() {
	if c.Stopped() {
		return
	}
	// Errors are already logged by fetch; the old token stays until it
	// expires and on-demand callers will try again.
	_, _ = c.Token(context.Background(), true)
}
