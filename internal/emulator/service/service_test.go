package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/domain"
	"github.com/aussiebroadwan/firekit/internal/emulator/store/drivers/sqlite"
	"github.com/aussiebroadwan/firekit/pkg/auth"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const project = "demo-project"

type fixture struct {
	clock    *clockwork.FakeClock
	sa       *jwtx.KeyManager
	tokens   *TokenService
	accounts *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "emulator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	keys := func(prefix string) *jwtx.KeyManager {
		km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{NumKeys: 1, KIDPrefix: prefix})
		require.NoError(t, err)
		return km
	}

	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	return &fixture{
		clock: clock,
		sa:    keys("sa"),
		tokens: &TokenService{
			Store:       st,
			IDKeys:      keys("id"),
			SessionKeys: keys("session"),
			ProjectID:   project,
			Clock:       clock,
		},
		accounts: &AccountService{Store: st, Clock: clock},
	}
}

func (f *fixture) customToken(t *testing.T, uid string, extra map[string]any) string {
	t.Helper()

	now := f.clock.Now()
	claims := jwt.MapClaims{
		"aud": auth.CustomTokenAudience,
		"iss": "sdk@demo-project.iam.gserviceaccount.com",
		"sub": "sdk@demo-project.iam.gserviceaccount.com",
		"uid": uid,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	tok, err := f.sa.GetSigner().Sign(claims)
	require.NoError(t, err)
	return tok
}

func TestSignInWithCustomToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.tokens.SignInWithCustomToken(ctx,
		f.customToken(t, "abc123", map[string]any{"claims": map[string]any{"admin": true}}))
	require.NoError(t, err)
	require.True(t, res.IsNewUser)
	require.Equal(t, "abc123", res.LocalID)
	require.Equal(t, time.Hour, res.ExpiresIn)

	claims, err := f.tokens.VerifyIDToken(ctx, project, res.IDToken)
	require.NoError(t, err)
	require.Equal(t, "abc123", claims["sub"])
	require.Equal(t, "abc123", claims["user_id"])
	require.Equal(t, true, claims["admin"])
	require.Equal(t, IDTokenIssuerPrefix+project, claims["iss"])
	require.Equal(t, "custom", jwtx.MapClaim(claims, "firebase")["sign_in_provider"])

	// Second sign in finds the account
	res, err = f.tokens.SignInWithCustomToken(ctx, f.customToken(t, "abc123", nil))
	require.NoError(t, err)
	require.False(t, res.IsNewUser)

	got, err := f.accounts.Lookup(ctx, project, []string{"abc123", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].LastLoginAt)
}

func TestSignInRejectsBadCustomTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingCustomToken},
		{"not a jwt", "nope", ErrInvalidCustomToken},
		{"wrong audience", f.customToken(t, "u1", map[string]any{"aud": "someone-else"}), ErrInvalidCustomToken},
		{"no uid", f.customToken(t, "", nil), ErrInvalidCustomToken},
		{"no exp", f.customToken(t, "u1", map[string]any{"exp": nil}), ErrInvalidCustomToken},
		{"expired", f.customToken(t, "u1", map[string]any{"exp": f.clock.Now().Add(-time.Second).Unix()}), ErrInvalidCustomToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tokens.SignInWithCustomToken(ctx, tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignInWithTrustedKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.tokens.TrustedKeys = f.sa.KeySet

	_, err := f.tokens.SignInWithCustomToken(ctx, f.customToken(t, "abc123", nil))
	require.NoError(t, err)

	// Signed by a key nobody trusts
	other, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{NumKeys: 1, KIDPrefix: "rogue"})
	require.NoError(t, err)
	rogue, err := other.GetSigner().Sign(jwt.MapClaims{
		"aud": auth.CustomTokenAudience,
		"uid": "abc123",
		"iat": f.clock.Now().Unix(),
		"exp": f.clock.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	_, err = f.tokens.SignInWithCustomToken(ctx, rogue)
	require.ErrorIs(t, err, ErrInvalidCustomToken)
}

func TestDisabledAccountCannotSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tokens.SignInWithCustomToken(ctx, f.customToken(t, "abc123", nil))
	require.NoError(t, err)

	disabled := true
	_, err = f.accounts.Update(ctx, project, domain.AccountUpdate{LocalID: "abc123", Disabled: &disabled})
	require.NoError(t, err)

	_, err = f.tokens.SignInWithCustomToken(ctx, f.customToken(t, "abc123", nil))
	require.ErrorIs(t, err, ErrUserDisabled)
}

func TestStoredClaimsEndUpInIDToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tokens.SignInWithCustomToken(ctx, f.customToken(t, "abc123", nil))
	require.NoError(t, err)

	attrs := `{"role":"editor","level":3}`
	_, err = f.accounts.Update(ctx, project, domain.AccountUpdate{LocalID: "abc123", CustomAttributes: &attrs})
	require.NoError(t, err)

	// The token's claims win over stored ones
	res, err := f.tokens.SignInWithCustomToken(ctx,
		f.customToken(t, "abc123", map[string]any{"claims": map[string]any{"level": 4}}))
	require.NoError(t, err)

	claims, err := f.tokens.VerifyIDToken(ctx, project, res.IDToken)
	require.NoError(t, err)
	require.Equal(t, "editor", claims["role"])
	require.EqualValues(t, 4, claims["level"])
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tokens.SignInWithCustomToken(ctx, f.customToken(t, "abc123", nil))
	require.NoError(t, err)

	str := func(s string) *string { return &s }

	tests := []struct {
		name string
		u    domain.AccountUpdate
		want error
	}{
		{"missing id", domain.AccountUpdate{}, ErrMissingLocalID},
		{"unknown user", domain.AccountUpdate{LocalID: "nobody"}, ErrUserNotFound},
		{"not an object", domain.AccountUpdate{LocalID: "abc123", CustomAttributes: str(`[1]`)}, ErrInvalidClaims},
		{"reserved", domain.AccountUpdate{LocalID: "abc123", CustomAttributes: str(`{"sub":"x"}`)}, ErrInvalidClaims},
		{"too large", domain.AccountUpdate{LocalID: "abc123", CustomAttributes: str(`{"k":"` + string(make([]byte, 1000)) + `"}`)}, ErrClaimsTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Update(ctx, project, tt.u)
			require.ErrorIs(t, err, tt.want)
		})
	}

	// Clearing with an empty object
	_, err = f.accounts.Update(ctx, project, domain.AccountUpdate{LocalID: "abc123", CustomAttributes: str(`{"a":1}`)})
	require.NoError(t, err)
	a, err := f.accounts.Update(ctx, project, domain.AccountUpdate{LocalID: "abc123", CustomAttributes: str(`{}`)})
	require.NoError(t, err)
	require.Empty(t, a.CustomAttributes)

	require.NoError(t, f.accounts.Delete(ctx, project, "abc123"))
	require.ErrorIs(t, f.accounts.Delete(ctx, project, "abc123"), ErrUserNotFound)
}

func TestCreateSessionCookie(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.tokens.SignInWithCustomToken(ctx,
		f.customToken(t, "abc123", map[string]any{"claims": map[string]any{"admin": true}}))
	require.NoError(t, err)

	cookie, err := f.tokens.CreateSessionCookie(ctx, project, res.IDToken, 24*time.Hour)
	require.NoError(t, err)

	claims, err := f.tokens.SessionKeys.Verifier(jwtx.VerifyOptions{
		Issuer:   SessionCookieIssuerPrefix + project,
		Audience: project,
		Clock:    f.clock,
	}).Verify(ctx, cookie)
	require.NoError(t, err)
	require.Equal(t, "abc123", claims["sub"])
	require.Equal(t, true, claims["admin"])
	exp, _ := jwtx.TimeClaim(claims, "exp")
	require.Equal(t, f.clock.Now().Add(24*time.Hour).Unix(), exp.Unix())

	t.Run("duration bounds", func(t *testing.T) {
		_, err := f.tokens.CreateSessionCookie(ctx, project, res.IDToken, time.Minute)
		require.ErrorIs(t, err, ErrInvalidDuration)
		_, err = f.tokens.CreateSessionCookie(ctx, project, res.IDToken, 15*24*time.Hour)
		require.ErrorIs(t, err, ErrInvalidDuration)
	})

	t.Run("wrong project", func(t *testing.T) {
		_, err := f.tokens.CreateSessionCookie(ctx, "other-project", res.IDToken, time.Hour)
		require.ErrorIs(t, err, ErrInvalidIDToken)
	})

	t.Run("revoked", func(t *testing.T) {
		f.clock.Advance(2 * time.Second)
		since := f.clock.Now()
		_, err := f.accounts.Update(ctx, project, domain.AccountUpdate{LocalID: "abc123", ValidSince: &since})
		require.NoError(t, err)

		_, err = f.tokens.CreateSessionCookie(ctx, project, res.IDToken, time.Hour)
		require.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("expired id token", func(t *testing.T) {
		f.clock.Advance(2 * time.Hour)
		_, err := f.tokens.CreateSessionCookie(ctx, project, res.IDToken, time.Hour)
		require.ErrorIs(t, err, ErrTokenExpired)
	})
}
