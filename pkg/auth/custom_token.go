package auth

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

// CustomTokenAudience is the audience every custom token is minted for.
const CustomTokenAudience = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"

const (
	customTokenLifetime = time.Hour
	maxUIDLength        = 128
)

// Developer claims may not shadow these.
var reservedClaims = []string{
	"acr", "amr", "at_hash", "aud", "auth_time", "azp", "cnf", "c_hash",
	"exp", "firebase", "iat", "iss", "jti", "nbf", "nonce", "sub",
}

// IsReservedClaim reports whether name is set by the platform itself and
// so cannot be used as a developer claim.
func IsReservedClaim(name string) bool {
	return slices.Contains(reservedClaims, name)
}

// CustomToken mints a token a client app can exchange for an ID token
// signed in as uid.
func (c *Client) CustomToken(ctx context.Context, uid string) (string, error) {
	return c.CustomTokenWithClaims(ctx, uid, nil)
}

// CustomTokenWithClaims is CustomToken with developer claims that end up in
// the resulting ID token.
func (c *Client) CustomTokenWithClaims(ctx context.Context, uid string, devClaims map[string]any) (string, error) {
	ctx, span := tracer.Start(ctx, "auth.CustomToken")
	defer span.End()

	if err := validateUID(uid); err != nil {
		return "", err
	}
	if err := validateDevClaims(devClaims); err != nil {
		return "", err
	}

	if c.signer == nil {
		return "", errx.InvalidCredential(
			"custom tokens need a service account: initialize the app with a service account " +
				"credential or set the service account ID")
	}

	email, err := c.signer.Email(ctx)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	now := c.clock.Now()
	claims := jwt.MapClaims{
		"aud": CustomTokenAudience,
		"iss": email,
		"sub": email,
		"uid": uid,
		"iat": now.Unix(),
		"exp": now.Add(customTokenLifetime).Unix(),
	}
	if len(devClaims) > 0 {
		claims["claims"] = devClaims
	}

	token, err := jwtx.SignRS256(ctx, c.signer, c.signer.KeyID(), claims)
	if err != nil {
		span.RecordError(err)
		var typed *errx.Error
		if errors.As(err, &typed) {
			return "", err
		}
		return "", errx.Internal(err, "failed to sign custom token")
	}
	return token, nil
}

func validateUID(uid string) error {
	if uid == "" {
		return errx.InvalidArgument("uid must be a non-empty string")
	}
	if len(uid) > maxUIDLength {
		return errx.InvalidArgument("uid must not be longer than %d characters", maxUIDLength)
	}
	return nil
}

func validateDevClaims(claims map[string]any) error {
	if len(claims) == 0 {
		return nil
	}

	var bad []string
	for k := range claims {
		if IsReservedClaim(k) {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return errx.InvalidArgument("developer claims %s are reserved and cannot be specified",
			strings.Join(bad, ", "))
	}

	if _, err := json.Marshal(claims); err != nil {
		return errx.Wrap(err, errx.KindInvalidArgument, errx.CodeArgument,
			"developer claims must be serializable to JSON")
	}
	return nil
}
