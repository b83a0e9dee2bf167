package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// StringClaim reads a string claim, "" when missing or not a string.
func StringClaim(c jwt.MapClaims, name string) string {
	s, _ := c[name].(string)
	return s
}

// TimeClaim reads a NumericDate style claim. Both float64 (default JSON
// decoding) and json.Number are accepted.
func TimeClaim(c jwt.MapClaims, name string) (time.Time, bool) {
	switch v := c[name].(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	default:
		return time.Time{}, false
	}
}

// MapClaim reads a nested object claim.
func MapClaim(c jwt.MapClaims, name string) map[string]any {
	m, _ := c[name].(map[string]any)
	return m
}
