package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/domain"
	"github.com/aussiebroadwan/firekit/internal/emulator/store"
	"github.com/aussiebroadwan/firekit/pkg/auth"
	"github.com/aussiebroadwan/firekit/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

const (
	IDTokenIssuerPrefix       = "https://securetoken.google.com/"
	SessionCookieIssuerPrefix = "https://session.firebase.google.com/"

	DefaultIDTokenTTL = time.Hour

	MinSessionCookieDuration = 5 * time.Minute
	MaxSessionCookieDuration = 14 * 24 * time.Hour
)

// TokenService exchanges custom tokens for ID tokens and ID tokens for
// session cookies.
type TokenService struct {
	Store       store.Store
	IDKeys      *jwtx.KeyManager
	SessionKeys *jwtx.KeyManager

	// TrustedKeys verifies custom token signatures. When nil any well
	// formed custom token is accepted, which is what local development
	// usually wants.
	TrustedKeys jwtx.KeySource

	// ProjectID custom tokens sign in to; they do not name one themselves.
	ProjectID  string
	IDTokenTTL time.Duration
	Clock      clockwork.Clock
	Logger     *slog.Logger
}

func (s *TokenService) clock() clockwork.Clock {
	if s.Clock == nil {
		return clockwork.NewRealClock()
	}
	return s.Clock
}

func (s *TokenService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// SignInWithCustomToken signs the custom token's uid in, creating the
// account on first use, and mints an ID token for it.
func (s *TokenService) SignInWithCustomToken(ctx context.Context, customToken string) (domain.SignInResult, error) {
	if customToken == "" {
		return domain.SignInResult{}, ErrMissingCustomToken
	}

	ct, err := s.parseCustomToken(ctx, customToken)
	if err != nil {
		return domain.SignInResult{}, err
	}

	uid := jwtx.StringClaim(ct, "uid")
	now := s.clock().Now()

	var (
		account domain.Account
		isNew   bool
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.Accounts().GetAccount(ctx, s.ProjectID, uid)
		switch {
		case errors.Is(err, store.ErrNotFound):
			a = domain.Account{
				ProjectID: s.ProjectID,
				LocalID:   uid,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Accounts().CreateAccount(ctx, a); err != nil {
				return err
			}
			isNew = true
		case err != nil:
			return err
		case a.Disabled:
			return withDetail(ErrUserDisabled, "the user account has been disabled")
		}

		if err := tx.Accounts().RecordLogin(ctx, s.ProjectID, uid, now); err != nil {
			return err
		}
		account = a
		return nil
	})
	if err != nil {
		return domain.SignInResult{}, err
	}

	ttl := s.IDTokenTTL
	if ttl <= 0 {
		ttl = DefaultIDTokenTTL
	}

	claims := jwt.MapClaims{
		"iss":       IDTokenIssuerPrefix + s.ProjectID,
		"aud":       s.ProjectID,
		"sub":       uid,
		"user_id":   uid,
		"auth_time": now.Unix(),
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
		"firebase": map[string]any{
			"identities":       map[string]any{},
			"sign_in_provider": "custom",
		},
	}

	// Claims stored on the account first, the token's own win over them
	stored, err := account.Claims()
	if err != nil {
		return domain.SignInResult{}, fmt.Errorf("decode custom attributes of %q: %w", uid, err)
	}
	addDeveloperClaims(claims, stored)
	addDeveloperClaims(claims, jwtx.MapClaim(ct, "claims"))

	idToken, err := s.IDKeys.GetSigner().Sign(claims)
	if err != nil {
		return domain.SignInResult{}, fmt.Errorf("sign id token: %w", err)
	}

	s.logger().InfoContext(ctx, "signed in with custom token", "project", s.ProjectID, "uid", uid, "new_user", isNew)

	return domain.SignInResult{
		IDToken:   idToken,
		ExpiresIn: ttl,
		LocalID:   uid,
		IsNewUser: isNew,
	}, nil
}

func (s *TokenService) parseCustomToken(ctx context.Context, raw string) (jwt.MapClaims, error) {
	var claims jwt.MapClaims

	if s.TrustedKeys != nil {
		v := jwtx.NewVerifierRS256(s.TrustedKeys, jwtx.VerifyOptions{
			Audience: auth.CustomTokenAudience,
			Clock:    s.clock(),
		})

		var err error
		if claims, err = v.Verify(ctx, raw); err != nil {
			if errors.Is(err, jwtx.ErrExpired) {
				return nil, withDetail(ErrInvalidCustomToken, "the custom token has expired")
			}
			return nil, withDetail(ErrInvalidCustomToken, "%v", err)
		}
	} else {
		claims = jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			return nil, withDetail(ErrInvalidCustomToken, "the custom token is not a JWT")
		}

		aud, err := claims.GetAudience()
		if err != nil || !slices.Contains(aud, auth.CustomTokenAudience) {
			return nil, withDetail(ErrInvalidCustomToken, "unexpected audience %v", claims["aud"])
		}

		exp, ok := jwtx.TimeClaim(claims, "exp")
		if !ok {
			return nil, withDetail(ErrInvalidCustomToken, "the custom token has no exp")
		}
		if !s.clock().Now().Before(exp) {
			return nil, withDetail(ErrInvalidCustomToken, "the custom token has expired")
		}
	}

	uid := jwtx.StringClaim(claims, "uid")
	if uid == "" || len(uid) > jwtx.MaxSubjectLength {
		return nil, withDetail(ErrInvalidCustomToken, "uid must be 1 to %d characters", jwtx.MaxSubjectLength)
	}
	return claims, nil
}

// CreateSessionCookie turns a valid ID token of projectID into a session
// cookie lasting validFor.
func (s *TokenService) CreateSessionCookie(ctx context.Context, projectID, idToken string, validFor time.Duration) (string, error) {
	if err := s.checkProject(projectID); err != nil {
		return "", err
	}
	if idToken == "" {
		return "", ErrMissingIDToken
	}
	if validFor < MinSessionCookieDuration || validFor > MaxSessionCookieDuration {
		return "", withDetail(ErrInvalidDuration, "duration must be between %s and %s",
			MinSessionCookieDuration, MaxSessionCookieDuration)
	}

	claims, err := s.VerifyIDToken(ctx, projectID, idToken)
	if err != nil {
		return "", err
	}

	uid := jwtx.StringClaim(claims, "sub")
	account, err := s.Store.Accounts().GetAccount(ctx, projectID, uid)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", err
	}
	if account.Disabled {
		return "", ErrUserDisabled
	}
	if iat, ok := jwtx.TimeClaim(claims, "iat"); ok && account.Revoked(iat) {
		return "", withDetail(ErrTokenExpired, "the ID token has been revoked")
	}

	now := s.clock().Now()
	cookie := carryClaims(claims)
	cookie["iss"] = SessionCookieIssuerPrefix + projectID
	cookie["aud"] = projectID
	cookie["iat"] = now.Unix()
	cookie["exp"] = now.Add(validFor).Unix()

	signed, err := s.SessionKeys.GetSigner().Sign(cookie)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}

	s.logger().InfoContext(ctx, "session cookie created", "project", projectID, "uid", uid, "valid_for", validFor)
	return signed, nil
}

// VerifyIDToken checks an ID token this emulator issued for projectID.
func (s *TokenService) VerifyIDToken(ctx context.Context, projectID, idToken string) (jwt.MapClaims, error) {
	v := s.IDKeys.Verifier(jwtx.VerifyOptions{
		Issuer:         IDTokenIssuerPrefix + projectID,
		Audience:       projectID,
		RequireSubject: true,
		Clock:          s.clock(),
	})

	claims, err := v.Verify(ctx, idToken)
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, withDetail(ErrInvalidIDToken, "%v", err)
	}
	return claims, nil
}

func (s *TokenService) checkProject(projectID string) error {
	if projectID == "" {
		return withDetail(ErrProjectNotFound, "missing project id")
	}
	return nil
}
