package domain

import (
	"encoding/json"
	"time"
)

// Account is one user of one project.
type Account struct {
	ProjectID     string
	LocalID       string
	Email         string
	EmailVerified bool
	DisplayName   string
	Disabled      bool

	// ValidSince is the revocation cutoff, kept to the second. Tokens
	// issued before it no longer count.
	ValidSince time.Time

	// CustomAttributes is a JSON object of developer claims, "" if unset.
	CustomAttributes string

	CreatedAt   time.Time
	LastLoginAt *time.Time
	UpdatedAt   time.Time
}

// Claims decodes the account's custom attributes.
func (a Account) Claims() (map[string]any, error) {
	if a.CustomAttributes == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(a.CustomAttributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Revoked reports whether a token issued at iat predates the cutoff.
func (a Account) Revoked(iat time.Time) bool {
	return !a.ValidSince.IsZero() && iat.Unix() < a.ValidSince.Unix()
}
