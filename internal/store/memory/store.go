// Package memory implementa los repositorios en proceso.
//
// Un único mutex protege todo el estado: cada método es una transición atómica,
// igual que la escritura condicional equivalente en Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	repo "github.com/dropDatabas3/posguard/internal/domain/repository"
)

// Store guarda identidades, invitaciones, sesiones y credenciales 2FA.
type Store struct {
	mu          sync.Mutex
	identities  map[string]*repo.Identity // id -> identity
	byEmail     map[string]string         // email normalizado -> id
	invitations map[string]*repo.Invitation
	invByToken  map[string]string // token hash -> id
	sessions    map[string]*repo.Session
	sessByToken map[string]string
	twofactor   map[string]*repo.TwoFactorCredential
}

// New crea un Store vacío.
func New() *Store {
	return &Store{
		identities:  map[string]*repo.Identity{},
		byEmail:     map[string]string{},
		invitations: map[string]*repo.Invitation{},
		invByToken:  map[string]string{},
		sessions:    map[string]*repo.Session{},
		sessByToken: map[string]string{},
		twofactor:   map[string]*repo.TwoFactorCredential{},
	}
}

// Identities devuelve la vista IdentityRepository.
func (s *Store) Identities() repo.IdentityRepository { return identityRepo{s} }

// Invitations devuelve la vista InvitationRepository.
func (s *Store) Invitations() repo.InvitationRepository { return invitationRepo{s} }

// Sessions devuelve la vista SessionRepository.
func (s *Store) Sessions() repo.SessionRepository { return sessionRepo{s} }

// TwoFactor devuelve la vista TwoFactorRepository.
func (s *Store) TwoFactor() repo.TwoFactorRepository { return twoFactorRepo{s} }

// ─── Identities ───

type identityRepo struct{ s *Store }

func (r identityRepo) GetByID(_ context.Context, id string) (*repo.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.identities[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (r identityRepo) GetByEmail(_ context.Context, email string) (*repo.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byEmail[repo.NormalizeEmail(email)]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r.s.identities[id]
	return &cp, nil
}

func (r identityRepo) Create(_ context.Context, id repo.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertIdentityLocked(id)
}

func (s *Store) insertIdentityLocked(id repo.Identity) error {
	email := repo.NormalizeEmail(id.Email)
	if _, dup := s.byEmail[email]; dup {
		return repo.ErrConflict
	}
	if _, dup := s.identities[id.ID]; dup {
		return repo.ErrConflict
	}
	id.Email = email
	s.identities[id.ID] = &id
	s.byEmail[email] = id.ID
	return nil
}

// ─── Invitations ───

type invitationRepo struct{ s *Store }

func (r invitationRepo) Create(_ context.Context, inv repo.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv.Email = repo.NormalizeEmail(inv.Email)
	for _, other := range r.s.invitations {
		if other.Email != inv.Email || other.Scope != inv.Scope || other.Status != repo.InvitationPending {
			continue
		}
		if !inv.CreatedAt.Before(other.ExpiresAt) {
			other.Status = repo.InvitationExpired
			continue
		}
		return repo.ErrConflict
	}
	if _, dup := r.s.invByToken[inv.TokenHash]; dup {
		return repo.ErrConflict
	}
	r.s.invitations[inv.ID] = &inv
	r.s.invByToken[inv.TokenHash] = inv.ID
	return nil
}

func (r invitationRepo) GetByTokenHash(_ context.Context, hash string) (*repo.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.invByToken[hash]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r.s.invitations[id]
	return &cp, nil
}

func (r invitationRepo) GetByID(_ context.Context, id string) (*repo.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r invitationRepo) List(_ context.Context, f repo.InvitationFilter) ([]repo.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []repo.Invitation
	for _, inv := range r.s.invitations {
		if !f.Scope.Contains(inv.Scope) {
			continue
		}
		if f.Status != nil && inv.Status != *f.Status {
			continue
		}
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r invitationRepo) MarkExpired(_ context.Context, id string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return false, repo.ErrNotFound
	}
	if inv.Status != repo.InvitationPending || now.Before(inv.ExpiresAt) {
		return false, nil
	}
	inv.Status = repo.InvitationExpired
	return true, nil
}

func (r invitationRepo) Accept(_ context.Context, in repo.AcceptInvitationInput) (*repo.AcceptInvitationResult, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.invByToken[in.TokenHash]
	if !ok {
		return nil, repo.ErrNotFound
	}
	inv := r.s.invitations[id]
	switch inv.EffectiveStatus(in.Now) {
	case repo.InvitationPending:
	case repo.InvitationExpired:
		return nil, repo.ErrExpired
	default:
		return nil, repo.ErrConflict
	}

	res := &repo.AcceptInvitationResult{}
	if ident, exists := r.s.identities[r.s.byEmail[inv.Email]]; exists {
		ident.Role = inv.Role
		ident.Scope = inv.Scope
		ident.UpdatedAt = in.Now
		res.Identity = *ident
	} else {
		if in.NewIdentityID == "" || in.PasswordHash == "" {
			return nil, repo.ErrInvalidInput
		}
		ident := repo.Identity{
			ID:           in.NewIdentityID,
			Email:        inv.Email,
			Name:         in.Name,
			Role:         inv.Role,
			Scope:        inv.Scope,
			PasswordHash: in.PasswordHash,
			CreatedAt:    in.Now,
			UpdatedAt:    in.Now,
		}
		if err := r.s.insertIdentityLocked(ident); err != nil {
			return nil, err
		}
		res.Identity = ident
		res.Created = true
	}

	at := in.Now
	by := res.Identity.ID
	inv.Status = repo.InvitationAccepted
	inv.AcceptedAt = &at
	inv.AcceptedBy = &by
	res.Invitation = *inv
	return res, nil
}

func (r invitationRepo) Cancel(_ context.Context, id string, now time.Time) (*repo.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invitations[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if inv.Status != repo.InvitationPending {
		return nil, repo.ErrConflict
	}
	at := now
	inv.Status = repo.InvitationCancelled
	inv.CancelledAt = &at
	cp := *inv
	return &cp, nil
}

func (r invitationRepo) ExpireAll(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, inv := range r.s.invitations {
		if inv.Status == repo.InvitationPending && !now.Before(inv.ExpiresAt) {
			inv.Status = repo.InvitationExpired
			n++
		}
	}
	return n, nil
}

func (r invitationRepo) DeleteStale(_ context.Context, olderThan time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for id, inv := range r.s.invitations {
		if inv.Status != repo.InvitationExpired && inv.Status != repo.InvitationCancelled {
			continue
		}
		if !inv.CreatedAt.Before(olderThan) {
			continue
		}
		delete(r.s.invByToken, inv.TokenHash)
		delete(r.s.invitations, id)
		n++
	}
	return n, nil
}

// ─── Sessions ───

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, sess repo.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, dup := r.s.sessByToken[sess.TokenHash]; dup {
		return repo.ErrConflict
	}
	r.s.sessions[sess.ID] = &sess
	r.s.sessByToken[sess.TokenHash] = sess.ID
	return nil
}

func (r sessionRepo) GetByTokenHash(_ context.Context, hash string) (*repo.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.sessByToken[hash]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r.s.sessions[id]
	return &cp, nil
}

func (r sessionRepo) GetByID(_ context.Context, id string) (*repo.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r sessionRepo) Touch(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sess, ok := r.s.sessions[id]; ok && at.After(sess.LastActivity) {
		sess.LastActivity = at
	}
	return nil
}

func (r sessionRepo) ListActive(_ context.Context, identityID string, now time.Time) ([]repo.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []repo.Session
	for _, sess := range r.s.sessions {
		if sess.IdentityID == identityID && sess.Active(now) {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (r sessionRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return repo.ErrNotFound
	}
	r.s.deleteSessionLocked(sess)
	return nil
}

func (r sessionRepo) DeleteByIdentity(_ context.Context, identityID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sess := range r.s.sessions {
		if sess.IdentityID == identityID {
			r.s.deleteSessionLocked(sess)
			n++
		}
	}
	return n, nil
}

func (r sessionRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, sess := range r.s.sessions {
		if !sess.Active(now) {
			r.s.deleteSessionLocked(sess)
			n++
		}
	}
	return n, nil
}

func (s *Store) deleteSessionLocked(sess *repo.Session) {
	delete(s.sessByToken, sess.TokenHash)
	delete(s.sessions, sess.ID)
}

// ─── Two-factor ───

type twoFactorRepo struct{ s *Store }

func (r twoFactorRepo) Get(_ context.Context, identityID string) (*repo.TwoFactorCredential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.twofactor[identityID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneCredential(c), nil
}

func (r twoFactorRepo) SavePending(_ context.Context, identityID, secretEnc string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.twofactor[identityID]; ok {
		if c.Enabled {
			return repo.ErrConflict
		}
		c.SecretEnc = secretEnc
		c.BackupCodes = nil
		c.LastUsedStep = nil
		c.UpdatedAt = now
		return nil
	}
	r.s.twofactor[identityID] = &repo.TwoFactorCredential{
		IdentityID: identityID,
		SecretEnc:  secretEnc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return nil
}

func (r twoFactorRepo) Enable(_ context.Context, identityID, secretEnc string, backupHashes []string, step int64, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.twofactor[identityID]
	if !ok || c.Enabled || c.SecretEnc != secretEnc {
		return repo.ErrConflict
	}
	at := now
	st := step
	c.Enabled = true
	c.EnabledAt = &at
	c.BackupCodes = append([]string(nil), backupHashes...)
	c.LastUsedStep = &st
	c.UpdatedAt = now
	return nil
}

func (r twoFactorRepo) ConsumeBackupCode(_ context.Context, identityID, hash string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.twofactor[identityID]
	if !ok || !c.Enabled {
		return false, nil
	}
	for i, h := range c.BackupCodes {
		if h == hash {
			c.BackupCodes = append(c.BackupCodes[:i:i], c.BackupCodes[i+1:]...)
			c.UpdatedAt = now
			return true, nil
		}
	}
	return false, nil
}

func (r twoFactorRepo) MarkStepUsed(_ context.Context, identityID string, step int64, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.twofactor[identityID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if c.LastUsedStep != nil && *c.LastUsedStep >= step {
		return false, nil
	}
	st := step
	c.LastUsedStep = &st
	c.UpdatedAt = now
	return true, nil
}

func (r twoFactorRepo) Disable(_ context.Context, identityID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.twofactor, identityID)
	return nil
}

func cloneCredential(c *repo.TwoFactorCredential) *repo.TwoFactorCredential {
	cp := *c
	cp.BackupCodes = append([]string(nil), c.BackupCodes...)
	if c.LastUsedStep != nil {
		v := *c.LastUsedStep
		cp.LastUsedStep = &v
	}
	return &cp
}
