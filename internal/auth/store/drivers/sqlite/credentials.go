package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nimbusvault/authcore/internal/auth/domain"
	"github.com/nimbusvault/authcore/internal/auth/store"
)

type credentialsRepo struct {
	db *sql.DB
}

const credentialColumns = `identity_id, username, password_hash, created_at`

func scanCredential(row *sql.Row) (domain.Credential, error) {
	var (
		c       domain.Credential
		created int64
	)
	if err := row.Scan(&c.IdentityID, &c.Username, &c.PasswordHash, &created); err != nil {
		return domain.Credential{}, mapNotFound(err)
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

func (r *credentialsRepo) LookupByUsername(ctx context.Context, username string) (domain.Credential, error) {
	return scanCredential(r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE username = ?`, username))
}

func (r *credentialsRepo) LookupByID(ctx context.Context, identityID string) (domain.Credential, error) {
	return scanCredential(r.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE identity_id = ?`, identityID))
}

func (r *credentialsRepo) Insert(ctx context.Context, c domain.Credential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO credentials (`+credentialColumns+`) VALUES (?, ?, ?, ?)`,
		c.IdentityID, c.Username, c.PasswordHash, c.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *credentialsRepo) UpdatePasswordHash(ctx context.Context, identityID, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE credentials SET password_hash = ? WHERE identity_id = ?`, hash, identityID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *credentialsRepo) Delete(ctx context.Context, identityID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE identity_id = ?`, identityID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *credentialsRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM credentials`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
