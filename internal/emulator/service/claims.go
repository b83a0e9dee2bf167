package service

import (
	"encoding/json"
	"maps"

	"github.com/aussiebroadwan/firekit/pkg/auth"
	"github.com/golang-jwt/jwt/v5"
)

// Longest customAttributes payload the platform stores.
const maxCustomAttributesBytes = 1000

// validateCustomAttributes checks an accounts:update payload: a JSON
// object, small enough, without reserved claim names.
func validateCustomAttributes(raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > maxCustomAttributesBytes {
		return withDetail(ErrClaimsTooLarge, "custom attributes must be at most %d bytes", maxCustomAttributesBytes)
	}

	var attrs map[string]any
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return withDetail(ErrInvalidClaims, "custom attributes must be a JSON object")
	}
	for k := range attrs {
		if auth.IsReservedClaim(k) {
			return withDetail(ErrInvalidClaims, "%q is a reserved claim", k)
		}
	}
	return nil
}

// addDeveloperClaims copies claims into dst, skipping reserved names.
func addDeveloperClaims(dst jwt.MapClaims, claims map[string]any) {
	for k, v := range claims {
		if auth.IsReservedClaim(k) {
			continue
		}
		dst[k] = v
	}
}

// carryClaims returns the claims of an ID token worth keeping in a session
// cookie: everything but the timing and addressing fields we set again.
func carryClaims(src jwt.MapClaims) jwt.MapClaims {
	out := maps.Clone(src)
	for _, k := range []string{"iss", "aud", "iat", "exp", "nbf", "jti"} {
		delete(out, k)
	}
	return out
}
