package authsdk

import (
	"time"

	"github.com/aussiebroadwan/firekit/pkg/jwtx"
)

// SignInResult is a successful custom token exchange.
type SignInResult struct {
	IDToken   string
	ExpiresIn time.Duration
	LocalID   string
	IsNewUser bool
}

type signInRequest struct {
	Token             string `json:"token"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	Kind         string `json:"kind"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	IsNewUser    bool   `json:"isNewUser"`
}

// HealthResponse is what /livez and /readyz return; only readyz has Checks.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse is a published key set.
type JWKSResponse jwtx.JWKS
