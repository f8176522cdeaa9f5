package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	repo "github.com/dropDatabas3/posguard/internal/domain/repository"
)

const sessionCols = `id, identity_id, token_hash, device, origin, created_at, last_activity, expires_at`

type sessionRepo struct{ db DB }

func scanSession(row pgx.Row) (*repo.Session, error) {
	var s repo.Session
	if err := row.Scan(&s.ID, &s.IdentityID, &s.TokenHash, &s.Device, &s.Origin, &s.CreatedAt, &s.LastActivity, &s.ExpiresAt); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r sessionRepo) Create(ctx context.Context, s repo.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (`+sessionCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.IdentityID, s.TokenHash, s.Device, s.Origin, s.CreatedAt, s.LastActivity, s.ExpiresAt)
	if isUniqueViolation(err) {
		return repo.ErrConflict
	}
	return err
}

func (r sessionRepo) GetByTokenHash(ctx context.Context, hash string) (*repo.Session, error) {
	return scanSession(r.db.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE token_hash = $1`, hash))
}

func (r sessionRepo) GetByID(ctx context.Context, id string) (*repo.Session, error) {
	return scanSession(r.db.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE id = $1`, id))
}

func (r sessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE sessions SET last_activity = $2 WHERE id = $1 AND last_activity < $2`, id, at)
	return err
}

func (r sessionRepo) ListActive(ctx context.Context, identityID string, now time.Time) ([]repo.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionCols+` FROM sessions WHERE identity_id = $1 AND expires_at > $2 ORDER BY last_activity DESC`,
		identityID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repo.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r sessionRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r sessionRepo) DeleteByIdentity(ctx context.Context, identityID string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE identity_id = $1`, identityID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r sessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
