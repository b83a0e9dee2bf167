package tokencache_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/credential"
	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/aussiebroadwan/firekit/pkg/tokencache"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// countingCredential hands out numbered tokens and can be told to fail or
// to hold every fetch until released.
type countingCredential struct {
	calls     atomic.Int32
	expiresIn int64
	gate      chan struct{}

	mu  sync.Mutex
	err error
}

func (c *countingCredential) AccessToken(ctx context.Context) (*credential.Token, error) {
	n := c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}

	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return &credential.Token{AccessToken: fmt.Sprintf("token-%d", n), ExpiresIn: c.expiresIn}, nil
}

func (c *countingCredential) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

type credentialFunc func(ctx context.Context) (*credential.Token, error)

func (f credentialFunc) AccessToken(ctx context.Context) (*credential.Token, error) { return f(ctx) }

func TestTokenIsCached(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cred := &countingCredential{expiresIn: 3600}
	cache := tokencache.New(cred, tokencache.Options{Clock: clock})
	defer cache.Stop()

	first, err := cache.Token(context.Background(), false)
	require.NoError(t, err)
	second, err := cache.Token(context.Background(), false)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.EqualValues(t, 1, cred.calls.Load())
	require.Equal(t, clock.Now().Add(time.Hour), first.ExpiresAt)
	require.Equal(t, clock.Now().Add(time.Hour).UnixMilli(), first.ExpiresAtMillis())
}

func TestForceRefreshFetches(t *testing.T) {
	cred := &countingCredential{expiresIn: 3600}
	cache := tokencache.New(cred, tokencache.Options{Clock: clockwork.NewFakeClock()})
	defer cache.Stop()

	_, err := cache.Token(context.Background(), false)
	require.NoError(t, err)

	tok, err := cache.Token(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, "token-2", tok.AccessToken)
	require.EqualValues(t, 2, cred.calls.Load())
}

func TestConcurrentColdReadsShareOneFetch(t *testing.T) {
	cred := &countingCredential{expiresIn: 3600, gate: make(chan struct{})}
	cache := tokencache.New(cred, tokencache.Options{Clock: clockwork.NewFakeClock()})
	defer cache.Stop()

	const readers = 50

	var wg sync.WaitGroup
	results := make(chan string, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := cache.Token(context.Background(), false)
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- tok.AccessToken
		}()
	}

	// Let the first fetch start before releasing it
	require.Eventually(t, func() bool { return cred.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(cred.gate)
	wg.Wait()
	close(results)

	for got := range results {
		require.Equal(t, "token-1", got)
	}
	require.EqualValues(t, 1, cred.calls.Load())
}

func TestProactiveRefreshFiresOnceBeforeExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cred := &countingCredential{expiresIn: 3600}
	cache := tokencache.New(cred, tokencache.Options{Clock: clock})
	defer cache.Stop()

	_, err := cache.Token(context.Background(), false)
	require.NoError(t, err)

	// 3600s lifetime minus the 300s margin
	clock.Advance(3299 * time.Second)
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 1, cred.calls.Load())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return cred.calls.Load() == 2 }, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		tok, ok := cache.Cached()
		return ok && tok.AccessToken == "token-2"
	}, time.Second, time.Millisecond)

	// Nothing else is due for another 3300s
	clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 2, cred.calls.Load())
}

func TestTokenInsideMarginIsRefetched(t *testing.T) {
	clock := clockwork.NewFakeClock()

	// 200s is already inside the 300s margin, so it is never served from
	// cache and no timer is armed for it
	cred := &countingCredential{expiresIn: 200}
	cache := tokencache.New(cred, tokencache.Options{Clock: clock})
	defer cache.Stop()

	_, err := cache.Token(context.Background(), false)
	require.NoError(t, err)

	tok, err := cache.Token(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, "token-2", tok.AccessToken)
	require.EqualValues(t, 2, cred.calls.Load())
}

func TestFailedRefreshKeepsPreviousToken(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cred := &countingCredential{expiresIn: 3600}
	cache := tokencache.New(cred, tokencache.Options{Clock: clock})
	defer cache.Stop()

	first, err := cache.Token(context.Background(), false)
	require.NoError(t, err)

	cred.failWith(errors.New("token endpoint down"))

	// The background refresh fails and is only logged
	clock.Advance(3300 * time.Second)
	require.Eventually(t, func() bool { return cred.calls.Load() == 2 }, time.Second, time.Millisecond)

	cached, ok := cache.Cached()
	require.True(t, ok)
	require.Equal(t, first, cached)

	// A forced caller sees the failure
	_, err = cache.Token(context.Background(), true)
	require.True(t, errx.IsCredentialFetch(err))

	// A plain caller still gets the not yet expired token
	tok, err := cache.Token(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, first.AccessToken, tok.AccessToken)

	// Past real expiry the error comes through
	clock.Advance(301 * time.Second)
	_, err = cache.Token(context.Background(), false)
	require.True(t, errx.IsCredentialFetch(err))

	// And the next success recovers
	cred.failWith(nil)
	tok, err = cache.Token(context.Background(), false)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, tok.AccessToken)
}

func TestListeners(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cred := &countingCredential{expiresIn: 3600}
	cache := tokencache.New(cred, tokencache.Options{Clock: clock})
	defer cache.Stop()

	var mu sync.Mutex
	var seen []string
	record := func(tok string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tok)
	}

	id := cache.AddListener(record)

	_, err := cache.Token(context.Background(), false)
	require.NoError(t, err)
	_, err = cache.Token(context.Background(), true)
	require.NoError(t, err)

	// A late subscriber gets the current token replayed
	var late []string
	cache.AddListener(func(tok string) { late = append(late, tok) })
	require.Equal(t, []string{"token-2"}, late)

	cache.RemoveListener(id)
	_, err = cache.Token(context.Background(), true)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"token-1", "token-2"}, seen)
}

func TestStop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cred := &countingCredential{expiresIn: 3600}
	cache := tokencache.New(cred, tokencache.Options{Clock: clock})

	first, err := cache.Token(context.Background(), false)
	require.NoError(t, err)

	notified := atomic.Int32{}
	cache.AddListener(func(string) { notified.Add(1) })
	require.EqualValues(t, 1, notified.Load())

	cache.Stop()
	require.True(t, cache.Stopped())

	// The timer is gone
	clock.Advance(2 * time.Hour)
	time.Sleep(10 * time.Millisecond)
	require.EqualValues(t, 1, cred.calls.Load())

	// On-demand fetches still work but are not cached or broadcast
	tok, err := cache.Token(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, "token-2", tok.AccessToken)

	cached, ok := cache.Cached()
	require.True(t, ok)
	require.Equal(t, first, cached)
	require.EqualValues(t, 1, notified.Load())
}

func TestCustomCredentialMisbehaviour(t *testing.T) {
	tests := []struct {
		name  string
		cred  credentialFunc
		check func(error) bool
	}{
		{
			name:  "nil token",
			cred:  func(context.Context) (*credential.Token, error) { return nil, nil },
			check: errx.IsInvalidCredential,
		},
		{
			name: "empty access token",
			cred: func(context.Context) (*credential.Token, error) {
				return &credential.Token{ExpiresIn: 3600}, nil
			},
			check: errx.IsInvalidCredential,
		},
		{
			name: "non-positive expiry",
			cred: func(context.Context) (*credential.Token, error) {
				return &credential.Token{AccessToken: "x", ExpiresIn: 0}, nil
			},
			check: errx.IsInvalidCredential,
		},
		{
			name:  "plain error",
			cred:  func(context.Context) (*credential.Token, error) { return nil, errors.New("nope") },
			check: errx.IsCredentialFetch,
		},
		{
			name:  "panic",
			cred:  func(context.Context) (*credential.Token, error) { panic("boom") },
			check: errx.IsCredentialFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := tokencache.New(tt.cred, tokencache.Options{Clock: clockwork.NewFakeClock()})
			defer cache.Stop()

			_, err := cache.Token(context.Background(), false)
			require.Error(t, err)
			require.True(t, tt.check(err), "unexpected error: %v", err)

			_, ok := cache.Cached()
			require.False(t, ok)
		})
	}

	t.Run("invalid token message", func(t *testing.T) {
		cache := tokencache.New(credentialFunc(func(context.Context) (*credential.Token, error) {
			return nil, nil
		}), tokencache.Options{})
		defer cache.Stop()

		_, err := cache.Token(context.Background(), false)
		require.ErrorContains(t, err, "Invalid access token generated")
	})
}

func TestTransportAddsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Authorization")))
	}))
	defer srv.Close()

	cred := &countingCredential{expiresIn: 3600}
	cache := tokencache.New(cred, tokencache.Options{})
	defer cache.Stop()

	client := &http.Client{Transport: cache.Transport(http.DefaultTransport)}
	for i := 0; i < 3; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)

		var buf [64]byte
		n, _ := resp.Body.Read(buf[:])
		resp.Body.Close()
		require.Equal(t, "Bearer token-1", string(buf[:n]))
	}
	require.EqualValues(t, 1, cred.calls.Load())
}
