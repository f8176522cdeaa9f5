// Package pg implementa los repositorios sobre Postgres con pgx.
//
// Las transiciones condicionales (aceptar invitación, consumir backup code,
// marcar paso TOTP) son un único UPDATE ... WHERE <estado esperado>; el
// RowsAffected decide quién ganó.
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/observability/logger"
)

// DB es lo que el Store necesita de un pool. *pgxpool.Pool y pgxmock lo cumplen.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PoolConfig ajusta el pool.
type PoolConfig struct {
	MaxConns        int
	ConnMaxLifetime time.Duration
}

// Connect abre un pool. Un ping fallido se loguea pero no impide arrancar.
func Connect(ctx context.Context, dsn string, cfg PoolConfig) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	log := logger.From(ctx).With(logger.Component("pg"))
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg pool startup ping failed", logger.Err(err))
	} else {
		log.Info("pg pool ready", logger.Int("max_conns", int(pcfg.MaxConns)))
	}
	return pool, nil
}

// Store agrupa los repositorios sobre una misma conexión.
type Store struct {
	db DB
}

// New crea el Store.
func New(db DB) *Store { return &Store{db: db} }

// Identities devuelve la vista IdentityRepository.
func (s *Store) Identities() repo.IdentityRepository { return identityRepo{s.db} }

// Invitations devuelve la vista InvitationRepository.
func (s *Store) Invitations() repo.InvitationRepository { return invitationRepo{s.db} }

// Sessions devuelve la vista SessionRepository.
func (s *Store) Sessions() repo.SessionRepository { return sessionRepo{s.db} }

// TwoFactor devuelve la vista TwoFactorRepository.
func (s *Store) TwoFactor() repo.TwoFactorRepository { return twoFactorRepo{s.db} }

// AuditSink persiste eventos de auditoría en audit_events.
func (s *Store) AuditSink() *AuditSink { return &AuditSink{db: s.db} }

// Ping verifica la conexión.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFound traduce pgx.ErrNoRows al sentinel del repositorio.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}

// rollback descarta la tx; después de Commit es un no-op.
func rollback(ctx context.Context, tx pgx.Tx) {
	_ = tx.Rollback(ctx)
}
