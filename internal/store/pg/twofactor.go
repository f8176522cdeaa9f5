package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	repo "github.com/dropDatabas3/posguard/internal/domain/repository"
)

type twoFactorRepo struct{ db DB }

func (r twoFactorRepo) Get(ctx context.Context, identityID string) (*repo.TwoFactorCredential, error) {
	c := repo.TwoFactorCredential{IdentityID: identityID}
	err := r.db.QueryRow(ctx,
		`SELECT secret_enc, enabled, last_used_step, created_at, updated_at, enabled_at FROM two_factor_credentials WHERE identity_id = $1`,
		identityID).Scan(&c.SecretEnc, &c.Enabled, &c.LastUsedStep, &c.CreatedAt, &c.UpdatedAt, &c.EnabledAt)
	if err != nil {
		return nil, notFound(err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT code_hash FROM two_factor_backup_codes WHERE identity_id = $1 AND used_at IS NULL ORDER BY code_hash`,
		identityID)
	if err != nil {
		return nil, err
	}
	c.BackupCodes, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SavePending no pisa una credencial habilitada: el ON CONFLICT ... WHERE no
// afecta filas y eso se traduce a ErrConflict.
func (r twoFactorRepo) SavePending(ctx context.Context, identityID, secretEnc string, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO two_factor_credentials (identity_id, secret_enc, enabled, created_at, updated_at) VALUES ($1, $2, false, $3, $3)
		ON CONFLICT (identity_id) DO UPDATE SET secret_enc = EXCLUDED.secret_enc, last_used_step = NULL, updated_at = EXCLUDED.updated_at
		WHERE two_factor_credentials.enabled = false`,
		identityID, secretEnc, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrConflict
	}
	if _, err := tx.Exec(ctx, `DELETE FROM two_factor_backup_codes WHERE identity_id = $1`, identityID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r twoFactorRepo) Enable(ctx context.Context, identityID, secretEnc string, backupHashes []string, step int64, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	tag, err := tx.Exec(ctx,
		`UPDATE two_factor_credentials SET enabled = true, enabled_at = $4, last_used_step = $3, updated_at = $4 WHERE identity_id = $1 AND secret_enc = $2 AND enabled = false`,
		identityID, secretEnc, step, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return repo.ErrConflict
	}
	if len(backupHashes) > 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO two_factor_backup_codes (identity_id, code_hash) SELECT $1, unnest($2::text[])`,
			identityID, backupHashes); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r twoFactorRepo) ConsumeBackupCode(ctx context.Context, identityID, hash string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE two_factor_backup_codes b SET used_at = $3 FROM two_factor_credentials c WHERE b.identity_id = $1 AND b.code_hash = $2 AND b.used_at IS NULL AND c.identity_id = b.identity_id AND c.enabled`,
		identityID, hash, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r twoFactorRepo) MarkStepUsed(ctx context.Context, identityID string, step int64, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE two_factor_credentials SET last_used_step = $2, updated_at = $3 WHERE identity_id = $1 AND (last_used_step IS NULL OR last_used_step < $2)`,
		identityID, step, now)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	var one int
	err = r.db.QueryRow(ctx, `SELECT 1 FROM two_factor_credentials WHERE identity_id = $1`, identityID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, repo.ErrNotFound
	}
	return false, err
}

// Disable borra la credencial; los backup codes caen por cascada.
func (r twoFactorRepo) Disable(ctx context.Context, identityID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM two_factor_credentials WHERE identity_id = $1`, identityID)
	return err
}
