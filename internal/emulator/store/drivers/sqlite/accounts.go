package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/firekit/internal/emulator/domain"
	"github.com/aussiebroadwan/firekit/internal/emulator/store"
)

type accountsRepo struct {
	q querier
}

const accountColumns = `project_id, local_id, email, email_verified, display_name, disabled,
	valid_since, custom_attributes, created_at, last_login_at, updated_at`

func (r *accountsRepo) GetAccount(ctx context.Context, projectID, localID string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE project_id = ? AND local_id = ?`,
		projectID, localID)

	var (
		a                    domain.Account
		validSince           int64
		createdAt, updatedAt int64
		lastLogin            sql.NullInt64
	)
	err := row.Scan(
		&a.ProjectID, &a.LocalID, &a.Email, &a.EmailVerified, &a.DisplayName, &a.Disabled,
		&validSince, &a.CustomAttributes, &createdAt, &lastLogin, &updatedAt,
	)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}

	a.ValidSince = fromSeconds(validSince)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	a.LastLoginAt = mapNullMillis(lastLogin)
	return a, nil
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = a.CreatedAt
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ProjectID, a.LocalID, a.Email, a.EmailVerified, a.DisplayName, a.Disabled,
		toSeconds(a.ValidSince), a.CustomAttributes, toMillis(a.CreatedAt),
		mapOptionalMillis(a.LastLoginAt), toMillis(updated),
	)
	return mapConflict(err)
}

func (r *accountsRepo) UpdateAccount(ctx context.Context, a domain.Account) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts
		    SET email = ?, email_verified = ?, display_name = ?, disabled = ?,
		        valid_since = ?, custom_attributes = ?, updated_at = ?
		  WHERE project_id = ? AND local_id = ?`,
		a.Email, a.EmailVerified, a.DisplayName, a.Disabled,
		toSeconds(a.ValidSince), a.CustomAttributes, toMillis(a.UpdatedAt),
		a.ProjectID, a.LocalID,
	)
	return requireRow(res, err)
}

func (r *accountsRepo) RecordLogin(ctx context.Context, projectID, localID string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE accounts SET last_login_at = ? WHERE project_id = ? AND local_id = ?`,
		toMillis(at), projectID, localID,
	)
	return requireRow(res, err)
}

func (r *accountsRepo) DeleteAccount(ctx context.Context, projectID, localID string) error {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM accounts WHERE project_id = ? AND local_id = ?`, projectID, localID)
	return requireRow(res, err)
}

func (r *accountsRepo) CountAccounts(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE project_id = ?`, projectID).Scan(&n)
	return n, err
}

func requireRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
