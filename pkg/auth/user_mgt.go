package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/errx"
)

// Session cookie lifetimes the platform accepts.
const (
	MinSessionCookieDuration = 5 * time.Minute
	MaxSessionCookieDuration = 14 * 24 * time.Hour
)

// UserRecord is the subset of an account the SDK cares about.
type UserRecord struct {
	UID           string
	Email         string
	EmailVerified bool
	DisplayName   string
	Disabled      bool

	// TokensValidAfterMillis is the revocation cutoff; tokens issued
	// before it are rejected by the revocation checks.
	TokensValidAfterMillis int64

	CreationTimestamp  int64
	LastLogInTimestamp int64
	CustomClaims       map[string]any
}

type lookupResponse struct {
	Users []struct {
		LocalID          string `json:"localId"`
		Email            string `json:"email"`
		EmailVerified    bool   `json:"emailVerified"`
		DisplayName      string `json:"displayName"`
		Disabled         bool   `json:"disabled"`
		ValidSince       string `json:"validSince"`
		CreatedAt        string `json:"createdAt"`
		LastLoginAt      string `json:"lastLoginAt"`
		CustomAttributes string `json:"customAttributes"`
	} `json:"users"`
}

// GetUser looks up an account by uid.
func (c *Client) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	ctx, span := tracer.Start(ctx, "auth.GetUser")
	defer span.End()

	if err := validateUID(uid); err != nil {
		return nil, err
	}
	if err := c.requireProjectID("look up users"); err != nil {
		return nil, err
	}

	var resp lookupResponse
	if err := c.post(ctx, c.projectURL("/accounts:lookup"), map[string]any{"localId": []string{uid}}, &resp); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, errx.New(errx.KindNotFound, errx.CodeUserNotFound, "no user record found for uid %q", uid)
	}

	u := resp.Users[0]
	rec := &UserRecord{
		UID:           u.LocalID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		Disabled:      u.Disabled,
	}

	// validSince is seconds, the other two are already milliseconds
	if u.ValidSince != "" {
		secs, err := strconv.ParseInt(u.ValidSince, 10, 64)
		if err != nil {
			return nil, errx.Internal(err, "unexpected validSince %q in user record", u.ValidSince)
		}
		rec.TokensValidAfterMillis = secs * 1000
	}
	rec.CreationTimestamp, _ = strconv.ParseInt(u.CreatedAt, 10, 64)
	rec.LastLogInTimestamp, _ = strconv.ParseInt(u.LastLoginAt, 10, 64)

	if u.CustomAttributes != "" {
		if err := json.Unmarshal([]byte(u.CustomAttributes), &rec.CustomClaims); err != nil {
			return nil, errx.Internal(err, "unexpected custom attributes in user record")
		}
	}
	return rec, nil
}

// RevokeRefreshTokens invalidates every refresh token of uid. ID tokens
// and session cookies already out there stay valid until they expire
// unless they are checked with one of the AndCheckRevoked variants.
func (c *Client) RevokeRefreshTokens(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "auth.RevokeRefreshTokens")
	defer span.End()

	return c.updateUser(ctx, uid, map[string]any{
		"validSince": strconv.FormatInt(c.clock.Now().Unix(), 10),
	})
}

// SetDisabled enables or disables an account.
func (c *Client) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	ctx, span := tracer.Start(ctx, "auth.SetDisabled")
	defer span.End()

	return c.updateUser(ctx, uid, map[string]any{"disableUser": disabled})
}

// SetCustomUserClaims replaces the developer claims put into the user's
// future ID tokens. nil clears them.
func (c *Client) SetCustomUserClaims(ctx context.Context, uid string, claims map[string]any) error {
	ctx, span := tracer.Start(ctx, "auth.SetCustomUserClaims")
	defer span.End()

	if err := validateDevClaims(claims); err != nil {
		return err
	}
	if claims == nil {
		claims = map[string]any{}
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return errx.Wrap(err, errx.KindInvalidArgument, errx.CodeArgument, "custom claims must be serializable to JSON")
	}

	return c.updateUser(ctx, uid, map[string]any{"customAttributes": string(raw)})
}

func (c *Client) updateUser(ctx context.Context, uid string, fields map[string]any) error {
	if err := validateUID(uid); err != nil {
		return err
	}
	if err := c.requireProjectID("update users"); err != nil {
		return err
	}

	fields["localId"] = uid

	var resp struct {
		LocalID string `json:"localId"`
	}
	if err := c.post(ctx, c.projectURL("/accounts:update"), fields, &resp); err != nil {
		return err
	}
	if resp.LocalID != uid {
		return errx.New(errx.KindInternal, errx.CodeInternal, "failed to update user %q", uid)
	}
	return nil
}

// SessionCookie exchanges an ID token for a session cookie valid for
// expiresIn, which must lie between five minutes and two weeks.
func (c *Client) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "auth.SessionCookie")
	defer span.End()

	if idToken == "" {
		return "", errx.InvalidArgument("ID token must be a non-empty string")
	}
	if expiresIn < MinSessionCookieDuration || expiresIn > MaxSessionCookieDuration {
		return "", errx.InvalidArgument("session cookie duration must be between %s and %s",
			MinSessionCookieDuration, MaxSessionCookieDuration)
	}
	if err := c.requireProjectID("create session cookies"); err != nil {
		return "", err
	}

	var resp struct {
		SessionCookie string `json:"sessionCookie"`
	}
	body := map[string]any{
		"idToken":       idToken,
		"validDuration": int64(expiresIn / time.Second),
	}
	url := fmt.Sprintf("%s/projects/%s:createSessionCookie", c.endpoints.IdentityToolkitURL, c.projectID)
	if err := c.post(ctx, url, body, &resp); err != nil {
		span.RecordError(err)
		return "", err
	}
	if resp.SessionCookie == "" {
		return "", errx.New(errx.KindInternal, errx.CodeInternal, "failed to create session cookie")
	}
	return resp.SessionCookie, nil
}

func (c *Client) projectURL(path string) string {
	return fmt.Sprintf("%s/projects/%s%s", c.endpoints.IdentityToolkitURL, c.projectID, path)
}

// post sends body as JSON and decodes a 200 response into out. Anything
// else becomes an *errx.Error from the server's error code.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errx.Internal(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errx.Internal(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return errx.Internal(err, "request to %s failed", url)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errx.Internal(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return serverError(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errx.Internal(err, "failed to decode response")
	}
	return nil
}

// Server error codes look like "USER_NOT_FOUND" or
// "INVALID_ID_TOKEN : some detail".
var serverErrorCodes = map[string]struct {
	kind errx.Kind
	code string
}{
	"USER_NOT_FOUND":       {errx.KindNotFound, errx.CodeUserNotFound},
	"USER_DISABLED":        {errx.KindUserDisabled, errx.CodeUserDisabled},
	"INVALID_ID_TOKEN":     {errx.KindInvalidToken, errx.CodeInvalidIDToken},
	"TOKEN_EXPIRED":        {errx.KindTokenExpired, errx.CodeIDTokenExpired},
	"INVALID_DURATION":     {errx.KindInvalidArgument, errx.CodeArgument},
	"INVALID_CUSTOM_TOKEN": {errx.KindInvalidArgument, errx.CodeArgument},
	"INVALID_CLAIMS":       {errx.KindInvalidArgument, errx.CodeArgument},
	"CREDENTIAL_MISMATCH":  {errx.KindInvalidArgument, errx.CodeArgument},
	"PROJECT_NOT_FOUND":    {errx.KindInvalidCredential, errx.CodeInvalidCredential},
}

func serverError(status int, body []byte) error {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &env)

	msg := env.Error.Message
	code, detail, _ := strings.Cut(msg, ":")
	code = strings.TrimSpace(code)

	if m, ok := serverErrorCodes[code]; ok {
		if detail = strings.TrimSpace(detail); detail == "" {
			detail = code
		}
		return errx.New(m.kind, m.code, "%s", detail)
	}

	if msg == "" {
		msg = string(body)
	}
	return errx.New(errx.KindInternal, errx.CodeInternal, "unexpected response (status %d): %s", status, msg)
}
