package tokencache

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx   context.Context
	cache *Cache
}

// TokenSource adapts the cache to oauth2.TokenSource. The cache already
// does the reuse, so it should not be wrapped in oauth2.ReuseTokenSource.
func (c *Cache) TokenSource(ctx context.Context) oauth2.TokenSource {
	return tokenSource{ctx: ctx, cache: c}
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	t, err := s.cache.Token(s.ctx, false)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: t.AccessToken,
		TokenType:   "Bearer",
		Expiry:      t.ExpiresAt,
	}, nil
}

// Transport returns a RoundTripper that adds the cached bearer token to
// every request before handing it to base.
func (c *Cache) Transport(base http.RoundTripper) http.RoundTripper {
	return &oauth2.Transport{
		Source: c.TokenSource(context.Background()),
		Base:   base,
	}
}
