package jwtx

import (
	"context"
	"crypto/rsa"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(ctx context.Context, token string) (jwt.MapClaims, error)
}

// KeySource resolves a key id to an RSA public key. A static KeySet and a
// RemoteKeySet both satisfy it.
type KeySource interface {
	Key(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// MaxSubjectLength is the longest "sub" the platform will issue.
const MaxSubjectLength = 128

// VerifyOptions captures the expectations a verifier enforces.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience the token must contain (claims.aud). Empty means "don't care".
	Audience string

	// RequireSubject enforces a non-empty "sub" of at most MaxSubjectLength
	// characters.
	RequireSubject bool

	// Clock drives the exp/iat/nbf checks. Defaults to the real clock.
	Clock clockwork.Clock
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrKeyFetch    = errors.New("jwtx: failed to fetch public keys")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)
