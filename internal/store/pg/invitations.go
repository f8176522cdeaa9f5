package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	repo "github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/rbac"
)

// invitationBaseCols no incluye columnas nulas; las usa Accept.
const (
	invitationBaseCols = `id, token_hash, email, role, inviter_id, organization_id, store_id, status, expires_at, created_at`
	invitationCols     = invitationBaseCols + `, accepted_at, accepted_by, cancelled_at`
)

type invitationRepo struct{ db DB }

func scanInvitationBase(row pgx.Row, extra ...any) (*repo.Invitation, error) {
	var (
		inv          repo.Invitation
		role, status string
		org, shop    string
	)
	dest := append([]any{
		&inv.ID, &inv.TokenHash, &inv.Email, &role, &inv.InviterID, &org, &shop, &status, &inv.ExpiresAt, &inv.CreatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, notFound(err)
	}
	inv.Role = rbac.Role(role)
	inv.Scope = rbac.Scope{OrganizationID: org, StoreID: shop}
	inv.Status = repo.InvitationStatus(status)
	return &inv, nil
}

func scanInvitation(row pgx.Row) (*repo.Invitation, error) {
	var (
		acceptedAt, cancelledAt *time.Time
		acceptedBy              *string
	)
	inv, err := scanInvitationBase(row, &acceptedAt, &acceptedBy, &cancelledAt)
	if err != nil {
		return nil, err
	}
	inv.AcceptedAt, inv.AcceptedBy, inv.CancelledAt = acceptedAt, acceptedBy, cancelledAt
	return inv, nil
}

// Create expira en la misma tx las pendientes vencidas del mismo (email, scope)
// para que el índice único parcial no las cuente.
func (r invitationRepo) Create(ctx context.Context, inv repo.Invitation) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer rollback(ctx, tx)

	email := repo.NormalizeEmail(inv.Email)
	if _, err := tx.Exec(ctx,
		`UPDATE invitations SET status = 'expired' WHERE email = $1 AND organization_id = $2 AND store_id = $3 AND status = 'pending' AND expires_at <= $4`,
		email, inv.Scope.OrganizationID, inv.Scope.StoreID, inv.CreatedAt); err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO invitations (`+invitationBaseCols+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inv.ID, inv.TokenHash, email, string(inv.Role), inv.InviterID,
		inv.Scope.OrganizationID, inv.Scope.StoreID, string(repo.InvitationPending), inv.ExpiresAt, inv.CreatedAt)
	if isUniqueViolation(err) {
		return repo.ErrConflict
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r invitationRepo) GetByTokenHash(ctx context.Context, hash string) (*repo.Invitation, error) {
	return scanInvitation(r.db.QueryRow(ctx, `SELECT `+invitationCols+` FROM invitations WHERE token_hash = $1`, hash))
}

func (r invitationRepo) GetByID(ctx context.Context, id string) (*repo.Invitation, error) {
	return scanInvitation(r.db.QueryRow(ctx, `SELECT `+invitationCols+` FROM invitations WHERE id = $1`, id))
}

// List filtra por contención de scope: plataforma ve todo, organización ve
// sus sucursales, sucursal solo la propia.
func (r invitationRepo) List(ctx context.Context, f repo.InvitationFilter) ([]repo.Invitation, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !f.Scope.Platform() {
		where = append(where, "organization_id = "+arg(f.Scope.OrganizationID))
		if f.Scope.StoreID != "" {
			where = append(where, "store_id = "+arg(f.Scope.StoreID))
		}
	}
	if f.Status != nil {
		where = append(where, "status = "+arg(string(*f.Status)))
	}

	q := `SELECT ` + invitationCols + ` FROM invitations`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		q += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repo.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (r invitationRepo) MarkExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invitations SET status = 'expired' WHERE id = $1 AND status = 'pending' AND expires_at <= $2`, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Accept bloquea la fila de la invitación, crea o actualiza la identidad y
// hace pending -> accepted con un UPDATE condicional, todo en una tx.
func (r invitationRepo) Accept(ctx context.Context, in repo.AcceptInvitationInput) (*repo.AcceptInvitationResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, tx)

	inv, err := scanInvitationBase(tx.QueryRow(ctx,
		`SELECT `+invitationBaseCols+` FROM invitations WHERE token_hash = $1 FOR UPDATE`, in.TokenHash))
	if err != nil {
		return nil, err
	}
	switch inv.EffectiveStatus(in.Now) {
	case repo.InvitationPending:
	case repo.InvitationExpired:
		return nil, repo.ErrExpired
	default:
		return nil, repo.ErrConflict
	}

	res := &repo.AcceptInvitationResult{}
	ident, err := scanIdentity(tx.QueryRow(ctx,
		`UPDATE identities SET role = $2, organization_id = $3, store_id = $4, updated_at = $5 WHERE email = $1 RETURNING `+identityCols,
		inv.Email, string(inv.Role), inv.Scope.OrganizationID, inv.Scope.StoreID, in.Now))
	switch {
	case err == nil:
		res.Identity = *ident
	case errors.Is(err, repo.ErrNotFound):
		if in.NewIdentityID == "" || in.PasswordHash == "" {
			return nil, repo.ErrInvalidInput
		}
		res.Identity = repo.Identity{
			ID:           in.NewIdentityID,
			Email:        inv.Email,
			Name:         in.Name,
			Role:         inv.Role,
			Scope:        inv.Scope,
			PasswordHash: in.PasswordHash,
			CreatedAt:    in.Now,
			UpdatedAt:    in.Now,
		}
		if err := insertIdentity(ctx, tx, res.Identity); err != nil {
			return nil, err
		}
		res.Created = true
	default:
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE invitations SET status = 'accepted', accepted_at = $2, accepted_by = $3 WHERE id = $1 AND status = 'pending'`,
		inv.ID, in.Now, res.Identity.ID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() != 1 {
		return nil, repo.ErrConflict
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	at, by := in.Now, res.Identity.ID
	inv.Status = repo.InvitationAccepted
	inv.AcceptedAt, inv.AcceptedBy = &at, &by
	res.Invitation = *inv
	return res, nil
}

func (r invitationRepo) Cancel(ctx context.Context, id string, now time.Time) (*repo.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRow(ctx,
		`UPDATE invitations SET status = 'cancelled', cancelled_at = $2 WHERE id = $1 AND status = 'pending' RETURNING `+invitationCols,
		id, now))
	if errors.Is(err, repo.ErrNotFound) {
		// distinguir inexistente de ya terminal
		var exists bool
		if qerr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invitations WHERE id = $1)`, id).Scan(&exists); qerr != nil {
			return nil, qerr
		}
		if exists {
			return nil, repo.ErrConflict
		}
		return nil, repo.ErrNotFound
	}
	return inv, err
}

func (r invitationRepo) ExpireAll(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.db.Exec(ctx, `UPDATE invitations SET status = 'expired' WHERE status = 'pending' AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r invitationRepo) DeleteStale(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM invitations WHERE status IN ('expired', 'cancelled') AND created_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
