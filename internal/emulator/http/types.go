package http

import (
	"bytes"
	"strconv"
)

// Int64Value is an int64 field the platform writes as a string and
// accepts either way.
type Int64Value struct {
	Value int64
	Set   bool
}

func (v *Int64Value) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	v.Value, v.Set = n, true
	return nil
}

type SignInWithCustomTokenRequest struct {
	Token             string `json:"token"`
	ReturnSecureToken bool   `json:"returnSecureToken,omitempty"`
	TenantID          string `json:"tenantId,omitempty"`
}

type SignInWithCustomTokenResponse struct {
	Kind      string `json:"kind"`
	IDToken   string `json:"idToken"`
	ExpiresIn string `json:"expiresIn"`
	IsNewUser bool   `json:"isNewUser"`
}

type LookupRequest struct {
	LocalID []string `json:"localId"`
}

type UserInfo struct {
	LocalID          string `json:"localId"`
	Email            string `json:"email,omitempty"`
	EmailVerified    bool   `json:"emailVerified"`
	DisplayName      string `json:"displayName,omitempty"`
	Disabled         bool   `json:"disabled"`
	ValidSince       string `json:"validSince,omitempty"`
	CreatedAt        string `json:"createdAt"`
	LastLoginAt      string `json:"lastLoginAt,omitempty"`
	CustomAttributes string `json:"customAttributes,omitempty"`
}

type LookupResponse struct {
	Kind  string     `json:"kind"`
	Users []UserInfo `json:"users,omitempty"`
}

type UpdateRequest struct {
	LocalID          string     `json:"localId"`
	ValidSince       Int64Value `json:"validSince" swaggertype:"string"`
	DisableUser      *bool      `json:"disableUser,omitempty"`
	CustomAttributes *string    `json:"customAttributes,omitempty"`
	DisplayName      *string    `json:"displayName,omitempty"`
	Email            *string    `json:"email,omitempty"`
	EmailVerified    *bool      `json:"emailVerified,omitempty"`
}

type UpdateResponse struct {
	Kind    string `json:"kind"`
	LocalID string `json:"localId"`
}

type DeleteRequest struct {
	LocalID string `json:"localId"`
}

type DeleteResponse struct {
	Kind string `json:"kind"`
}

type CreateSessionCookieRequest struct {
	IDToken       string     `json:"idToken"`
	ValidDuration Int64Value `json:"validDuration" swaggertype:"string"`
}

type CreateSessionCookieResponse struct {
	SessionCookie string `json:"sessionCookie"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}
