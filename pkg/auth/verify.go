package auth

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/firekit/pkg/errx"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
)

// tokenKind carries what differs between ID tokens and session cookies:
// the wording of errors and the codes they get.
type tokenKind struct {
	name        string
	invalidCode string
	expiredCode string
	revokedCode string
}

var (
	idTokenKind = tokenKind{
		name:        "ID token",
		invalidCode: errx.CodeInvalidIDToken,
		expiredCode: errx.CodeIDTokenExpired,
		revokedCode: errx.CodeIDTokenRevoked,
	}
	sessionCookieKind = tokenKind{
		name:        "session cookie",
		invalidCode: errx.CodeInvalidSessionCookie,
		expiredCode: errx.CodeSessionCookieExpired,
		revokedCode: errx.CodeSessionCookieRevoked,
	}
)

type tokenVerifier struct {
	kind     tokenKind
	verifier *jwtx.RS256Verifier
	clock    clockwork.Clock
}

func newTokenVerifier(kind tokenKind, projectID, issuerPrefix string, keys jwtx.KeySource, clock clockwork.Clock) *tokenVerifier {
	return &tokenVerifier{
		kind: kind,
		verifier: jwtx.NewVerifierRS256(keys, jwtx.VerifyOptions{
			Issuer:         issuerPrefix + projectID,
			Audience:       projectID,
			RequireSubject: true,
			Clock:          clock,
		}),
		clock: clock,
	}
}

func (v *tokenVerifier) verify(ctx context.Context, raw string) (*Token, error) {
	if raw == "" {
		return nil, errx.New(errx.KindInvalidArgument, errx.CodeArgument,
			"%s must be a non-empty string", v.kind.name)
	}

	claims, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, v.mapError(err)
	}

	tok := tokenFromClaims(claims)

	if at, ok := jwtx.TimeClaim(claims, "auth_time"); ok && at.After(v.clock.Now()) {
		return nil, errx.New(errx.KindInvalidToken, v.kind.invalidCode,
			"%s has an \"auth_time\" claim in the future", v.kind.name)
	}

	return tok, nil
}

func (v *tokenVerifier) mapError(err error) error {
	name := v.kind.name
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return errx.Wrap(err, errx.KindTokenExpired, v.kind.expiredCode,
			"%s has expired; get a fresh one from the client app and try again", name)
	case errors.Is(err, jwtx.ErrKeyFetch):
		return errx.Wrap(err, errx.KindInternal, errx.CodeCertificateFetch,
			"failed to fetch public keys to verify the %s", name)
	case errors.Is(err, jwtx.ErrAudience):
		return errx.Wrap(err, errx.KindInvalidToken, v.kind.invalidCode,
			"%s has incorrect \"aud\" (audience) claim; make sure it comes from the same project", name)
	case errors.Is(err, jwtx.ErrIssuer):
		return errx.Wrap(err, errx.KindInvalidToken, v.kind.invalidCode,
			"%s has incorrect \"iss\" (issuer) claim", name)
	case errors.Is(err, jwtx.ErrAlgMismatch):
		return errx.Wrap(err, errx.KindInvalidToken, v.kind.invalidCode,
			"%s has incorrect algorithm, expected RS256", name)
	case errors.Is(err, jwtx.ErrUnknownKID):
		return errx.Wrap(err, errx.KindInvalidToken, v.kind.invalidCode,
			"%s has a \"kid\" claim which does not correspond to a known public key", name)
	case errors.Is(err, jwtx.ErrInvalidSig):
		return errx.Wrap(err, errx.KindInvalidToken, v.kind.invalidCode,
			"%s has an invalid signature", name)
	case errors.Is(err, jwtx.ErrNotYetValid):
		return errx.Wrap(err, errx.KindInvalidToken, v.kind.invalidCode,
			"%s was issued in the future", name)
	default:
		return errx.Wrap(err, errx.KindInvalidToken, v.kind.invalidCode,
			"failed to verify %s", name)
	}
}

// VerifyIDToken checks the signature, audience, issuer, subject and
// lifetime of an ID token. It does not check for revocation.
func (c *Client) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	ctx, span := tracer.Start(ctx, "auth.VerifyIDToken")
	defer span.End()

	if err := c.requireProjectID("verify ID tokens"); err != nil {
		return nil, err
	}

	tok, err := c.idTokens.verify(ctx, idToken)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.uid", tok.UID))
	return tok, nil
}

// VerifyIDTokenAndCheckRevoked is VerifyIDToken plus a lookup of the user
// to reject disabled accounts and tokens issued before a revocation.
func (c *Client) VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*Token, error) {
	tok, err := c.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}
	if err := c.checkRevokedOrDisabled(ctx, tok, idTokenKind); err != nil {
		return nil, err
	}
	return tok, nil
}

// VerifySessionCookie is VerifyIDToken for session cookies.
func (c *Client) VerifySessionCookie(ctx context.Context, cookie string) (*Token, error) {
	ctx, span := tracer.Start(ctx, "auth.VerifySessionCookie")
	defer span.End()

	if err := c.requireProjectID("verify session cookies"); err != nil {
		return nil, err
	}

	tok, err := c.sessionCookies.verify(ctx, cookie)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.uid", tok.UID))
	return tok, nil
}

// VerifySessionCookieAndCheckRevoked is VerifyIDTokenAndCheckRevoked for
// session cookies.
func (c *Client) VerifySessionCookieAndCheckRevoked(ctx context.Context, cookie string) (*Token, error) {
	tok, err := c.VerifySessionCookie(ctx, cookie)
	if err != nil {
		return nil, err
	}
	if err := c.checkRevokedOrDisabled(ctx, tok, sessionCookieKind); err != nil {
		return nil, err
	}
	return tok, nil
}

// checkRevokedOrDisabled compares the token's iat against the user's
// validSince, both in milliseconds.
func (c *Client) checkRevokedOrDisabled(ctx context.Context, tok *Token, kind tokenKind) error {
	user, err := c.GetUser(ctx, tok.UID)
	if err != nil {
		return err
	}

	if user.Disabled {
		return errx.New(errx.KindUserDisabled, errx.CodeUserDisabled, "the user record is disabled")
	}

	if user.TokensValidAfterMillis > 0 && tok.IssuedAt*1000 < user.TokensValidAfterMillis {
		c.logger.InfoContext(ctx, "rejected revoked token", "uid", tok.UID, "kind", kind.name)
		return errx.New(errx.KindTokenRevoked, kind.revokedCode, "the %s has been revoked", kind.name)
	}
	return nil
}
