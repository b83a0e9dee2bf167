package jwtx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AlgorithmRS256 is the only algorithm the identity platform issues or
// accepts for the tokens we deal with.
const AlgorithmRS256 = "RS256"

// Signer is our interface for anything that holds a private key and can
// sign JWTs with it.
type Signer interface {
	BlobSigner

	Alg() string
	KID() string
	Sign(claims jwt.Claims) (string, error)
	PublicJWK() JWK
	Validate() error
}

// BlobSigner produces an RSASSA-PKCS1-v1_5 SHA-256 signature over raw bytes.
// Local keys implement it directly; remote signing services (IAM signBlob)
// implement it over HTTP, which is why it takes a context.
type BlobSigner interface {
	SignBlob(ctx context.Context, data []byte) ([]byte, error)
}

// NewSignerRS256 creates an RS256 signer from PEM bytes.
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	return newRS256Signer(kid, pemKey)
}

// SignRS256 assembles a compact RS256 JWT and has s sign it. This is the
// path used when the private key lives somewhere else.
func SignRS256(ctx context.Context, s BlobSigner, kid string, claims jwt.Claims) (string, error) {
	if s == nil {
		return "", errors.New("jwtx: nil signer")
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		t.Header["kid"] = kid
	}

	ss, err := t.SigningString()
	if err != nil {
		return "", fmt.Errorf("jwtx: encode token: %w", err)
	}

	sig, err := s.SignBlob(ctx, []byte(ss))
	if err != nil {
		return "", err
	}

	return strings.Join([]string{ss, t.EncodeSegment(sig)}, "."), nil
}
