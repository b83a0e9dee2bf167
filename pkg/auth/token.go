package auth

import (
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

// Token is a verified ID token or session cookie.
type Token struct {
	AuthTime int64
	Issuer   string
	Audience string
	Expires  int64
	IssuedAt int64
	Subject  string
	UID      string
	Firebase FirebaseInfo

	// Claims holds everything that is not one of the fields above,
	// developer claims included.
	Claims map[string]any
}

// FirebaseInfo is the "firebase" claim.
type FirebaseInfo struct {
	SignInProvider string
	Tenant         string
	Identities     map[string]any
}

var registeredClaims = map[string]bool{
	"auth_time": true,
	"iss":       true,
	"aud":       true,
	"exp":       true,
	"iat":       true,
	"sub":       true,
	"uid":       true,
	"firebase":  true,
}

func tokenFromClaims(c jwt.MapClaims) *Token {
	t := &Token{
		Issuer:   jwtx.StringClaim(c, "iss"),
		Subject:  jwtx.StringClaim(c, "sub"),
		Audience: jwtx.StringClaim(c, "aud"),
		Claims:   make(map[string]any),
	}
	t.UID = t.Subject

	if ts, ok := jwtx.TimeClaim(c, "auth_time"); ok {
		t.AuthTime = ts.Unix()
	}
	if ts, ok := jwtx.TimeClaim(c, "exp"); ok {
		t.Expires = ts.Unix()
	}
	if ts, ok := jwtx.TimeClaim(c, "iat"); ok {
		t.IssuedAt = ts.Unix()
	}

	if fb := jwtx.MapClaim(c, "firebase"); fb != nil {
		t.Firebase.SignInProvider, _ = fb["sign_in_provider"].(string)
		t.Firebase.Tenant, _ = fb["tenant"].(string)
		t.Firebase.Identities, _ = fb["identities"].(map[string]any)
	}

	for k, v := range c {
		if !registeredClaims[k] {
			t.Claims[k] = v
		}
	}
	return t
}
