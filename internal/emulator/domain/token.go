package domain

import "time"

// SignInResult is what an exchange of a custom token hands back.
type SignInResult struct {
	IDToken   string
	ExpiresIn time.Duration
	LocalID   string
	IsNewUser bool
}

// AccountUpdate holds the fields accounts:update may change. nil means
// leave alone.
type AccountUpdate struct {
	LocalID          string
	ValidSince       *time.Time
	Disabled         *bool
	CustomAttributes *string
	DisplayName      *string
	Email            *string
	EmailVerified    *bool
}
