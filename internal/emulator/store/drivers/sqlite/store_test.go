package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/domain"
	"github.com/aussiebroadwan/firekit/internal/emulator/store"
	"github.com/aussiebroadwan/firekit/internal/emulator/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "emulator.db") + "?_pragma=busy_timeout(5000)"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	// A second run has nothing to do
	require.NoError(t, st.ApplyMigrations())
	return st
}

func TestAccountsCRUD(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := st.Accounts().GetAccount(ctx, "p1", "abc123")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.Accounts().CreateAccount(ctx, domain.Account{
		ProjectID: "p1",
		LocalID:   "abc123",
		Email:     "abc@example.com",
		CreatedAt: now,
	}))

	err = st.Accounts().CreateAccount(ctx, domain.Account{ProjectID: "p1", LocalID: "abc123", CreatedAt: now})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Same uid in another project is another account
	require.NoError(t, st.Accounts().CreateAccount(ctx, domain.Account{ProjectID: "p2", LocalID: "abc123", CreatedAt: now}))

	got, err := st.Accounts().GetAccount(ctx, "p1", "abc123")
	require.NoError(t, err)
	require.Equal(t, "abc@example.com", got.Email)
	require.True(t, got.CreatedAt.Equal(now))
	require.True(t, got.ValidSince.IsZero())
	require.Nil(t, got.LastLoginAt)

	got.Disabled = true
	got.ValidSince = now.Add(90 * time.Second)
	got.CustomAttributes = `{"admin":true}`
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, st.Accounts().UpdateAccount(ctx, got))

	login := now.Add(2 * time.Minute)
	require.NoError(t, st.Accounts().RecordLogin(ctx, "p1", "abc123", login))

	got, err = st.Accounts().GetAccount(ctx, "p1", "abc123")
	require.NoError(t, err)
	require.True(t, got.Disabled)
	require.Equal(t, now.Add(90*time.Second).Unix(), got.ValidSince.Unix())
	require.NotNil(t, got.LastLoginAt)
	require.True(t, got.LastLoginAt.Equal(login))

	claims, err := got.Claims()
	require.NoError(t, err)
	require.Equal(t, map[string]any{"admin": true}, claims)

	n, err := st.Accounts().CountAccounts(ctx, "p1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.NoError(t, st.Accounts().DeleteAccount(ctx, "p1", "abc123"))
	require.ErrorIs(t, st.Accounts().DeleteAccount(ctx, "p1", "abc123"), store.ErrNotFound)
	require.ErrorIs(t, st.Accounts().RecordLogin(ctx, "p1", "abc123", login), store.ErrNotFound)
	require.ErrorIs(t, st.Accounts().UpdateAccount(ctx, got), store.ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := st.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().CreateAccount(ctx, domain.Account{
			ProjectID: "p1", LocalID: "u1", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}

		// Nested transactions are refused
		_, err := tx.Tx(ctx)
		require.Error(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Accounts().GetAccount(ctx, "p1", "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Accounts().CreateAccount(ctx, domain.Account{ProjectID: "p1", LocalID: "u1", CreatedAt: time.Now()})
	}))
	_, err = st.Accounts().GetAccount(ctx, "p1", "u1")
	require.NoError(t, err)

	require.NoError(t, st.Ping(ctx))
}
