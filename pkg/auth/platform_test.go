package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/auth"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const projectID = "demo-project"

type fakeUser struct {
	disabled   bool
	validSince int64
	attrs      string
}

// fakePlatform serves public keys and the handful of account endpoints the
// client calls, and mints tokens the way the real platform would.
type fakePlatform struct {
	t     *testing.T
	km    *jwtx.KeyManager
	clock clockwork.Clock
	srv   *httptest.Server

	keyHits  atomic.Int32
	keysDown atomic.Bool

	mu    sync.Mutex
	users map[string]*fakeUser
}

func newFakePlatform(t *testing.T, clock clockwork.Clock) *fakePlatform {
	t.Helper()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{NumKeys: 1, KIDPrefix: "platform"})
	require.NoError(t, err)

	p := &fakePlatform{t: t, km: km, clock: clock, users: map[string]*fakeUser{}}
	p.srv = httptest.NewServer(http.HandlerFunc(p.serveHTTP))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePlatform) endpoints() auth.Endpoints {
	return auth.Endpoints{
		IDTokenKeysURL:       p.srv.URL + "/keys/id",
		SessionCookieKeysURL: p.srv.URL + "/keys/session",
		IdentityToolkitURL:   p.srv.URL + "/v1",
	}
}

func (p *fakePlatform) client(t *testing.T) *auth.Client {
	t.Helper()

	c, err := auth.NewClient(context.Background(), &auth.Config{
		ProjectID: projectID,
		Endpoints: p.endpoints(),
		Clock:     p.clock,
	})
	require.NoError(t, err)
	return c
}

func (p *fakePlatform) addUser(uid string, u *fakeUser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[uid] = u
}

func (p *fakePlatform) user(uid string) *fakeUser {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.users[uid]
}

// idToken mints a valid ID token for uid; overrides replace or, when nil,
// remove individual claims.
func (p *fakePlatform) idToken(uid string, overrides map[string]any) string {
	now := p.clock.Now()
	claims := jwt.MapClaims{
		"iss":       "https://securetoken.google.com/" + projectID,
		"aud":       projectID,
		"sub":       uid,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
		"auth_time": now.Unix(),
		"firebase":  map[string]any{"sign_in_provider": "custom", "identities": map[string]any{}},
	}
	return p.sign(claims, overrides)
}

func (p *fakePlatform) sign(claims jwt.MapClaims, overrides map[string]any) string {
	for k, v := range overrides {
		if v == nil {
			delete(claims, k)
			continue
		}
		claims[k] = v
	}

	tok, err := p.km.GetSigner().Sign(claims)
	require.NoError(p.t, err)
	return tok
}

func (p *fakePlatform) serveHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	prefix := "/v1/projects/" + projectID

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/keys/"):
		p.keyHits.Add(1)
		if p.keysDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		pems, err := p.km.KeySet.PublicPEMs()
		require.NoError(p.t, err)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, pems)

	case path == prefix+"/accounts:lookup":
		var req struct {
			LocalID []string `json:"localId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		users := []map[string]any{}
		for _, uid := range req.LocalID {
			u := p.user(uid)
			if u == nil {
				continue
			}
			rec := map[string]any{"localId": uid, "disabled": u.disabled, "createdAt": "1000"}
			if u.validSince > 0 {
				rec["validSince"] = strconv.FormatInt(u.validSince, 10)
			}
			if u.attrs != "" {
				rec["customAttributes"] = u.attrs
			}
			users = append(users, rec)
		}
		if len(users) == 0 {
			writeJSON(w, http.StatusOK, map[string]any{"kind": "identitytoolkit#GetAccountInfoResponse"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})

	case path == prefix+"/accounts:update":
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)

		uid, _ := req["localId"].(string)
		p.mu.Lock()
		u, ok := p.users[uid]
		if ok {
			if vs, ok := req["validSince"].(string); ok {
				u.validSince, _ = strconv.ParseInt(vs, 10, 64)
			}
			if d, ok := req["disableUser"].(bool); ok {
				u.disabled = d
			}
			if a, ok := req["customAttributes"].(string); ok {
				u.attrs = a
			}
		}
		p.mu.Unlock()

		if !ok {
			writeError(w, http.StatusBadRequest, "USER_NOT_FOUND")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"localId": uid})

	case path == prefix+":createSessionCookie":
		var req struct {
			IDToken       string `json:"idToken"`
			ValidDuration int64  `json:"validDuration"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		claims, err := p.km.Verifier(jwtx.VerifyOptions{
			Issuer:   "https://securetoken.google.com/" + projectID,
			Audience: projectID,
			Clock:    p.clock,
		}).Verify(r.Context(), req.IDToken)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID_TOKEN : "+err.Error())
			return
		}

		now := p.clock.Now()
		cookie := p.sign(jwt.MapClaims{
			"iss":       "https://session.firebase.google.com/" + projectID,
			"aud":       projectID,
			"sub":       claims["sub"],
			"iat":       now.Unix(),
			"exp":       now.Add(time.Duration(req.ValidDuration) * time.Second).Unix(),
			"auth_time": claims["auth_time"],
		}, nil)
		writeJSON(w, http.StatusOK, map[string]any{"sessionCookie": cookie})

	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("NOT_FOUND : %s", path))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": msg},
	})
}
