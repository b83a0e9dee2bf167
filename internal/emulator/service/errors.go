package service

import (
	"errors"
	"fmt"
)

// Errors carry the platform's error codes so the HTTP layer can put them
// on the wire unchanged.
var (
	ErrMissingCustomToken = errors.New("MISSING_CUSTOM_TOKEN")
	ErrInvalidCustomToken = errors.New("INVALID_CUSTOM_TOKEN")
	ErrMissingIDToken     = errors.New("MISSING_ID_TOKEN")
	ErrInvalidIDToken     = errors.New("INVALID_ID_TOKEN")
	ErrTokenExpired       = errors.New("TOKEN_EXPIRED")
	ErrMissingLocalID     = errors.New("MISSING_LOCAL_ID")
	ErrUserNotFound       = errors.New("USER_NOT_FOUND")
	ErrUserDisabled       = errors.New("USER_DISABLED")
	ErrInvalidDuration    = errors.New("INVALID_DURATION")
	ErrInvalidClaims      = errors.New("INVALID_CLAIMS")
	ErrClaimsTooLarge     = errors.New("CLAIMS_TOO_LARGE")
	ErrProjectNotFound    = errors.New("PROJECT_NOT_FOUND")
)

// Codes lists every error above, for callers mapping errors back to codes.
var Codes = []error{
	ErrMissingCustomToken, ErrInvalidCustomToken, ErrMissingIDToken, ErrInvalidIDToken,
	ErrTokenExpired, ErrMissingLocalID, ErrUserNotFound, ErrUserDisabled,
	ErrInvalidDuration, ErrInvalidClaims, ErrClaimsTooLarge, ErrProjectNotFound,
}

func withDetail(code error, format string, args ...any) error {
	return fmt.Errorf("%w : %s", code, fmt.Sprintf(format, args...))
}
