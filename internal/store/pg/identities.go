package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	repo "github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/rbac"
)

const identityCols = `id, email, name, role, organization_id, store_id, password_hash, created_at, updated_at`

type identityRepo struct{ db DB }

func scanIdentity(row pgx.Row) (*repo.Identity, error) {
	var (
		it        repo.Identity
		role      string
		org, shop string
	)
	if err := row.Scan(&it.ID, &it.Email, &it.Name, &role, &org, &shop, &it.PasswordHash, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, notFound(err)
	}
	it.Role = rbac.Role(role)
	it.Scope = rbac.Scope{OrganizationID: org, StoreID: shop}
	return &it, nil
}

func (r identityRepo) GetByID(ctx context.Context, id string) (*repo.Identity, error) {
	return scanIdentity(r.db.QueryRow(ctx, `SELECT `+identityCols+` FROM identities WHERE id = $1`, id))
}

func (r identityRepo) GetByEmail(ctx context.Context, email string) (*repo.Identity, error) {
	return scanIdentity(r.db.QueryRow(ctx, `SELECT `+identityCols+` FROM identities WHERE email = $1`, repo.NormalizeEmail(email)))
}

func (r identityRepo) Create(ctx context.Context, it repo.Identity) error {
	return insertIdentity(ctx, r.db, it)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertIdentity(ctx context.Context, db execer, it repo.Identity) error {
	_, err := db.Exec(ctx,
		`INSERT INTO identities (id, email, name, role, organization_id, store_id, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.ID, repo.NormalizeEmail(it.Email), it.Name, string(it.Role),
		it.Scope.OrganizationID, it.Scope.StoreID, it.PasswordHash, it.CreatedAt, it.UpdatedAt)
	if isUniqueViolation(err) {
		return repo.ErrConflict
	}
	return err
}
