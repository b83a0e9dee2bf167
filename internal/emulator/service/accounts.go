package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/domain"
	"github.com/aussiebroadwan/firekit/internal/emulator/store"
	"github.com/jonboulle/clockwork"
)

// AccountService backs the admin account endpoints.
type AccountService struct {
	Store  store.Store
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Lookup returns the accounts of projectID among localIDs. Unknown ids
// are left out rather than failing the call.
func (s *AccountService) Lookup(ctx context.Context, projectID string, localIDs []string) ([]domain.Account, error) {
	if projectID == "" {
		return nil, withDetail(ErrProjectNotFound, "missing project id")
	}

	out := make([]domain.Account, 0, len(localIDs))
	for _, id := range localIDs {
		a, err := s.Store.Accounts().GetAccount(ctx, projectID, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Update applies u to an existing account.
func (s *AccountService) Update(ctx context.Context, projectID string, u domain.AccountUpdate) (domain.Account, error) {
	if projectID == "" {
		return domain.Account{}, withDetail(ErrProjectNotFound, "missing project id")
	}
	if u.LocalID == "" {
		return domain.Account{}, ErrMissingLocalID
	}
	if u.CustomAttributes != nil {
		if err := validateCustomAttributes(*u.CustomAttributes); err != nil {
			return domain.Account{}, err
		}
	}

	var updated domain.Account
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		a, err := tx.Accounts().GetAccount(ctx, projectID, u.LocalID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return err
		}

		if u.ValidSince != nil {
			a.ValidSince = *u.ValidSince
		}
		if u.Disabled != nil {
			a.Disabled = *u.Disabled
		}
		if u.CustomAttributes != nil {
			a.CustomAttributes = *u.CustomAttributes
			// "{}" clears them, like the platform does
			if a.CustomAttributes == "{}" {
				a.CustomAttributes = ""
			}
		}
		if u.DisplayName != nil {
			a.DisplayName = *u.DisplayName
		}
		if u.Email != nil {
			a.Email = *u.Email
		}
		if u.EmailVerified != nil {
			a.EmailVerified = *u.EmailVerified
		}

		a.UpdatedAt = s.now()
		if err := tx.Accounts().UpdateAccount(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}

	s.logger().InfoContext(ctx, "account updated", "project", projectID, "uid", u.LocalID)
	return updated, nil
}

// Delete removes an account.
func (s *AccountService) Delete(ctx context.Context, projectID, localID string) error {
	if localID == "" {
		return ErrMissingLocalID
	}
	err := s.Store.Accounts().DeleteAccount(ctx, projectID, localID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *AccountService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *AccountService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
