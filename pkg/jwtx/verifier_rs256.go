package jwtx

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// RS256Verifier validates JWTs signed using RS256.
//
// Checks run in a fixed order: structure, header (alg, kid), audience,
// issuer, subject, signature and finally the time based claims. Every
// failure wraps one of the package sentinels so callers can map them onto
// their own error codes.
type RS256Verifier struct {
	keys KeySource
	opts VerifyOptions
}

// NewVerifierRS256 creates a verifier resolving keys from keys.
func NewVerifierRS256(keys KeySource, opts VerifyOptions) *RS256Verifier {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &RS256Verifier{keys: keys, opts: opts}
}

// Verify validates the JWT string and returns its parsed claims.
func (v *RS256Verifier) Verify(ctx context.Context, tokenStr string) (jwt.MapClaims, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}

	// Claims validation is done by hand below, the library only gets to
	// decode and check the signature.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != AlgorithmRS256 {
			return nil, fmt.Errorf("%w: expected %q got %q", ErrAlgMismatch, AlgorithmRS256, t.Method.Alg())
		}

		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid header", ErrUnknownKID)
		}

		mc, _ := t.Claims.(jwt.MapClaims)
		if err := v.checkIdentity(mc); err != nil {
			return nil, err
		}

		pub, err := v.keys.Key(ctx, kid)
		if err != nil {
			return nil, err
		}
		return pub, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if err := v.checkTimes(claims); err != nil {
		return nil, err
	}

	return claims, nil
}

// checkIdentity runs the audience, issuer and subject checks.
func (v *RS256Verifier) checkIdentity(claims jwt.MapClaims) error {
	if v.opts.Audience != "" {
		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, v.opts.Audience) {
			return fmt.Errorf("%w: expected %q got %v", ErrAudience, v.opts.Audience, claims["aud"])
		}
	}

	if v.opts.Issuer != "" {
		iss, err := claims.GetIssuer()
		if err != nil || iss != v.opts.Issuer {
			return fmt.Errorf("%w: expected %q got %v", ErrIssuer, v.opts.Issuer, claims["iss"])
		}
	}

	if v.opts.RequireSubject {
		sub, err := claims.GetSubject()
		switch {
		case err != nil:
			return fmt.Errorf("%w: sub must be a string", ErrInvalidClaim)
		case sub == "":
			return fmt.Errorf("%w: sub must be non-empty", ErrInvalidClaim)
		case len(sub) > MaxSubjectLength:
			return fmt.Errorf("%w: sub must be at most %d characters", ErrInvalidClaim, MaxSubjectLength)
		}
	}

	return nil
}

func (v *RS256Verifier) checkTimes(claims jwt.MapClaims) error {
	now := v.opts.Clock.Now()

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fmt.Errorf("%w: exp missing or invalid", ErrInvalidClaim)
	}
	if !now.Before(exp.Time) {
		return fmt.Errorf("%w: expired at %d", ErrExpired, exp.Unix())
	}

	iat, err := claims.GetIssuedAt()
	if err != nil || iat == nil {
		return fmt.Errorf("%w: iat missing or invalid", ErrInvalidClaim)
	}
	if iat.After(now) {
		return fmt.Errorf("%w: issued in the future", ErrNotYetValid)
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return fmt.Errorf("%w: nbf invalid", ErrInvalidClaim)
	}
	if nbf != nil && nbf.After(now) {
		return fmt.Errorf("%w: not valid before %d", ErrNotYetValid, nbf.Unix())
	}

	return nil
}

// classify turns the library's errors into our sentinels. Errors we raised
// from the key func already carry one and pass straight through.
func classify(err error) error {
	for _, sentinel := range []error{
		ErrAlgMismatch, ErrUnknownKID, ErrKeyFetch, ErrAudience, ErrIssuer, ErrInvalidClaim,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		// Unregistered "alg" values fail before the key func runs
		return fmt.Errorf("%w: %v", ErrAlgMismatch, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
