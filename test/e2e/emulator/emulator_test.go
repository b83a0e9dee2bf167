//go:build e2e

package emulator_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/app"
	"github.com/aussiebroadwan/firekit/pkg/authsdk"
	"github.com/aussiebroadwan/firekit/pkg/credential"
	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/stretchr/testify/require"
)

type staticCredential struct{}

func (staticCredential) AccessToken(context.Context) (*credential.Token, error) {
	return &credential.Token{AccessToken: adminToken, ExpiresIn: 3600}, nil
}

func TestHealthEndpoints(t *testing.T) {
	hostport := setupEmulator(t, nil)
	client := authsdk.NewSDKClient(hostport)

	live, err := client.GetLiveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Signer)
}

func TestIDTokenLifecycle(t *testing.T) {
	hostport := setupEmulator(t, nil)
	c := newSDK(t, hostport)
	ctx := t.Context()

	custom, err := c.CustomTokenWithClaims(ctx, "e2e-user", map[string]any{"tier": "gold"})
	require.NoError(t, err)

	signedIn := signIn(t, hostport, custom)
	require.True(t, signedIn.IsNewUser)
	require.Equal(t, "e2e-user", signedIn.LocalID)

	tok, err := c.VerifyIDTokenAndCheckRevoked(ctx, signedIn.IDToken)
	require.NoError(t, err)
	require.Equal(t, "e2e-user", tok.UID)
	require.Equal(t, "gold", tok.Claims["tier"])

	// Claims set through the admin API show up in the next ID token
	require.NoError(t, c.SetCustomUserClaims(ctx, "e2e-user", map[string]any{"role": "editor"}))
	user, err := c.GetUser(ctx, "e2e-user")
	require.NoError(t, err)
	require.Equal(t, "editor", user.CustomClaims["role"])

	// validSince has second granularity, so make sure it lands after iat
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, c.RevokeRefreshTokens(ctx, "e2e-user"))

	_, err = c.VerifyIDTokenAndCheckRevoked(ctx, signedIn.IDToken)
	require.True(t, errx.HasCode(err, errx.CodeIDTokenRevoked), "got %v", err)

	custom, err = c.CustomToken(ctx, "e2e-user")
	require.NoError(t, err)
	again := signIn(t, hostport, custom)
	require.False(t, again.IsNewUser)

	tok, err = c.VerifyIDTokenAndCheckRevoked(ctx, again.IDToken)
	require.NoError(t, err)
	require.Equal(t, "editor", tok.Claims["role"])
}

func TestSessionCookies(t *testing.T) {
	hostport := setupEmulator(t, nil)
	c := newSDK(t, hostport)
	ctx := t.Context()

	custom, err := c.CustomToken(ctx, "cookie-user")
	require.NoError(t, err)
	signedIn := signIn(t, hostport, custom)

	cookie, err := c.SessionCookie(ctx, signedIn.IDToken, time.Hour)
	require.NoError(t, err)

	tok, err := c.VerifySessionCookieAndCheckRevoked(ctx, cookie)
	require.NoError(t, err)
	require.Equal(t, "cookie-user", tok.UID)

	// A session cookie is not an ID token
	_, err = c.VerifyIDToken(ctx, cookie)
	require.Error(t, err)

	require.NoError(t, c.SetDisabled(ctx, "cookie-user", true))
	_, err = c.VerifySessionCookieAndCheckRevoked(ctx, cookie)
	require.True(t, errx.HasCode(err, errx.CodeUserDisabled), "got %v", err)
}

// The registry picks the emulator up from the environment without any
// endpoint wiring of its own.
func TestAppUsesEmulatorHost(t *testing.T) {
	hostport := setupEmulator(t, nil)
	t.Setenv(app.EnvAuthEmulatorHost, hostport)

	c := newSDK(t, hostport)
	custom, err := c.CustomToken(t.Context(), "app-user")
	require.NoError(t, err)
	signedIn := signIn(t, hostport, custom)

	r := app.NewRegistry(app.RegistryOptions{})
	t.Cleanup(r.Close)

	a, err := r.InitializeApp(t.Context(), &app.Config{ProjectID: projectID}, app.WithCredential(staticCredential{}))
	require.NoError(t, err)

	authClient, err := a.Auth(t.Context())
	require.NoError(t, err)

	tok, err := authClient.VerifyIDTokenAndCheckRevoked(t.Context(), signedIn.IDToken)
	require.NoError(t, err)
	require.Equal(t, "app-user", tok.UID)
}

func TestAdminTokenIsEnforced(t *testing.T) {
	hostport := setupEmulator(t, nil)

	req, err := http.NewRequest(http.MethodPost,
		"http://"+hostport+"/v1/projects/"+projectID+"/accounts:lookup", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-the-admin")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignInRateLimit(t *testing.T) {
	hostport := setupEmulator(t, map[string]string{
		"RATELIMIT_SIGNIN_REQUESTS":   "1",
		"RATELIMIT_SIGNIN_WINDOW_SEC": "3600",
		"RATELIMIT_SIGNIN_BURST":      "1",
	})
	client := authsdk.NewSDKClient(hostport)

	_, err := client.SignInWithCustomToken(t.Context(), "")
	require.True(t, authsdk.IsCode(err, authsdk.CodeMissingCustomToken), "got %v", err)

	_, err = client.SignInWithCustomToken(t.Context(), "")
	require.True(t, authsdk.IsCode(err, authsdk.CodeQuotaExceeded), "got %v", err)
}
