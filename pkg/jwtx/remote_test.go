package jwtx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type keyServer struct {
	mu      sync.Mutex
	jwks    jwtx.JWKS
	maxAge  string
	status  int
	fetches atomic.Int32
}

func (s *keyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.fetches.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	if s.maxAge != "" {
		w.Header().Set("Cache-Control", "public, max-age="+s.maxAge+", must-revalidate, no-transform")
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.jwks)
}

func (s *keyServer) publish(signers ...jwtx.Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jwks = jwtx.JWKS{}
	for _, sg := range signers {
		s.jwks.Keys = append(s.jwks.Keys, sg.PublicJWK())
	}
}

func TestRemoteKeySetHonoursMaxAge(t *testing.T) {
	signer := newTestSigner(t, "k1")
	ks := &keyServer{maxAge: "60"}
	ks.publish(signer)

	srv := httptest.NewServer(ks)
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	remote := jwtx.NewRemoteKeySet(srv.URL, jwtx.RemoteKeySetOptions{Clock: clock})
	ctx := context.Background()

	_, err := remote.Key(ctx, "k1")
	require.NoError(t, err)
	_, err = remote.Key(ctx, "k1")
	require.NoError(t, err)
	require.EqualValues(t, 1, ks.fetches.Load())

	// Past max-age the document is fetched again
	clock.Advance(61 * time.Second)
	_, err = remote.Key(ctx, "k1")
	require.NoError(t, err)
	require.EqualValues(t, 2, ks.fetches.Load())
}

func TestRemoteKeySetUnknownKIDRefetchIsThrottled(t *testing.T) {
	k1 := newTestSigner(t, "k1")
	k2 := newTestSigner(t, "k2")

	ks := &keyServer{maxAge: "3600"}
	ks.publish(k1)

	srv := httptest.NewServer(ks)
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	remote := jwtx.NewRemoteKeySet(srv.URL, jwtx.RemoteKeySetOptions{
		Clock:              clock,
		UnknownKIDInterval: 10 * time.Second,
	})
	ctx := context.Background()

	_, err := remote.Key(ctx, "k1")
	require.NoError(t, err)

	// Keys rotate upstream before our copy expires
	ks.publish(k1, k2)
	_, err = remote.Key(ctx, "k2")
	require.NoError(t, err)
	require.EqualValues(t, 2, ks.fetches.Load())

	// Garbage kids do not hammer the endpoint
	_, err = remote.Key(ctx, "nope")
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	_, err = remote.Key(ctx, "nope")
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	require.EqualValues(t, 2, ks.fetches.Load())

	clock.Advance(11 * time.Second)
	_, err = remote.Key(ctx, "nope")
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	require.EqualValues(t, 3, ks.fetches.Load())
}

func TestRemoteKeySetFetchFailure(t *testing.T) {
	ks := &keyServer{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(ks)
	defer srv.Close()

	remote := jwtx.NewRemoteKeySet(srv.URL, jwtx.RemoteKeySetOptions{})
	_, err := remote.Key(context.Background(), "k1")
	require.ErrorIs(t, err, jwtx.ErrKeyFetch)
}

func TestRemoteKeySetCoalescesConcurrentFetches(t *testing.T) {
	signer := newTestSigner(t, "k1")

	release := make(chan struct{})
	ks := &keyServer{maxAge: "600"}
	ks.publish(signer)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		ks.ServeHTTP(w, r)
	}))
	defer srv.Close()

	remote := jwtx.NewRemoteKeySet(srv.URL, jwtx.RemoteKeySetOptions{})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := remote.Key(context.Background(), "k1")
			errs <- err
		}()
	}

	// Give the goroutines a moment to pile up on the in-flight request
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, ks.fetches.Load())
}

func TestRemoteKeySetColdStartFetchesOnce(t *testing.T) {
	signer := newTestSigner(t, "k1")

	for trial := 0; trial < 5; trial++ {
		ks := &keyServer{maxAge: "600"}
		ks.publish(signer)
		srv := httptest.NewServer(ks)

		remote := jwtx.NewRemoteKeySet(srv.URL, jwtx.RemoteKeySetOptions{})

		start := make(chan struct{})
		var wg sync.WaitGroup
		errs := make(chan error, 50)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := remote.Key(context.Background(), "k1")
				errs <- err
			}()
		}
		close(start)
		wg.Wait()
		close(errs)
		srv.Close()

		for err := range errs {
			require.NoError(t, err)
		}
		require.EqualValues(t, 1, ks.fetches.Load(), "trial %d", trial)
	}
}

func TestRemoteKeySetRefreshAlwaysRefetches(t *testing.T) {
	signer := newTestSigner(t, "k1")
	ks := &keyServer{maxAge: "600"}
	ks.publish(signer)
	srv := httptest.NewServer(ks)
	defer srv.Close()

	remote := jwtx.NewRemoteKeySet(srv.URL, jwtx.RemoteKeySetOptions{})

	_, err := remote.Refresh(context.Background())
	require.NoError(t, err)
	_, err = remote.Refresh(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, ks.fetches.Load())

	_, err = remote.Key(context.Background(), "k1")
	require.NoError(t, err)
	require.EqualValues(t, 2, ks.fetches.Load())
}

func TestCacheLifetime(t *testing.T) {
	tests := []struct {
		name string
		cc   string
		age  string
		want time.Duration
	}{
		{"max-age", "public, max-age=100", "", 100 * time.Second},
		{"minus age", "public, max-age=100, must-revalidate", "30", 70 * time.Second},
		{"age exceeds", "max-age=10", "40", 0},
		{"no header", "", "", 0},
		{"no-store", "no-store", "", 0},
		{"bad value", "max-age=soon", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.cc != "" {
				h.Set("Cache-Control", tt.cc)
			}
			if tt.age != "" {
				h.Set("Age", tt.age)
			}
			require.Equal(t, tt.want, jwtx.CacheLifetime(h))
		})
	}
}

func TestKeySetCacheSharesByURL(t *testing.T) {
	c := jwtx.NewKeySetCache()
	a := c.Get("https://keys.example/a", jwtx.RemoteKeySetOptions{})
	b := c.Get("https://keys.example/a", jwtx.RemoteKeySetOptions{})
	other := c.Get("https://keys.example/b", jwtx.RemoteKeySetOptions{})

	require.Same(t, a, b)
	require.NotSame(t, a, other)
	require.Equal(t, 2, c.Len())
}
