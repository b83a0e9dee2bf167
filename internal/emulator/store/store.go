package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers implement it and hand
// out sub-repositories so a transaction can never open another one.
type Store interface {
	Accounts() Accounts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing if it returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetAccount returns ErrNotFound when the project has no such user.
	GetAccount(ctx context.Context, projectID, localID string) (domain.Account, error)

	// CreateAccount returns ErrAlreadyExists if the id is taken.
	CreateAccount(ctx context.Context, a domain.Account) error

	// UpdateAccount overwrites the mutable fields and bumps updated_at.
	UpdateAccount(ctx context.Context, a domain.Account) error

	RecordLogin(ctx context.Context, projectID, localID string, at time.Time) error

	DeleteAccount(ctx context.Context, projectID, localID string) error

	CountAccounts(ctx context.Context, projectID string) (int64, error)
}
