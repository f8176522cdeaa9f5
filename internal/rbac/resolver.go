package rbac

import (
	"errors"
	"fmt"
)

// Resolver contiene la matriz ya resuelta. Inmutable tras NewResolver.
type Resolver struct {
	// closure[r] = roles subsumidos por r, incluido r.
	closure   map[Role]map[Role]struct{}
	effective map[Role]PermissionSet
	assigns   map[Role]map[Role]struct{}
}

// NewResolver valida la matriz y precalcula los permisos efectivos.
func NewResolver(m Matrix) (*Resolver, error) {
	for r := range m.Roles {
		if !r.Valid() {
			return nil, fmt.Errorf("rbac: matrix defines unknown role %q", r)
		}
	}
	for _, r := range allRoles {
		if _, ok := m.Roles[r]; !ok {
			return nil, fmt.Errorf("rbac: matrix missing role %q", r)
		}
	}

	res := &Resolver{
		closure:   make(map[Role]map[Role]struct{}, len(allRoles)),
		effective: make(map[Role]PermissionSet, len(allRoles)),
		assigns:   make(map[Role]map[Role]struct{}, len(allRoles)),
	}

	direct := make(map[Role][]Permission, len(allRoles))
	for r, rs := range m.Roles {
		for _, name := range rs.Grants {
			p, err := ParsePermission(name)
			if err != nil {
				return nil, fmt.Errorf("rbac: role %s: %w", r, err)
			}
			direct[r] = append(direct[r], p)
		}
		for _, in := range rs.Inherits {
			if !in.Valid() {
				return nil, fmt.Errorf("rbac: role %s inherits unknown role %q", r, in)
			}
		}
	}

	for _, r := range allRoles {
		c, err := closureOf(m, r)
		if err != nil {
			return nil, err
		}
		res.closure[r] = c

		var perms []Permission
		for sub := range c {
			perms = append(perms, direct[sub]...)
		}
		res.effective[r] = newPermissionSet(perms...)

		as := make(map[Role]struct{})
		for _, t := range m.Roles[r].Assigns {
			if _, ok := c[t]; !ok {
				return nil, fmt.Errorf("rbac: role %s assigns %s outside its hierarchy", r, t)
			}
			as[t] = struct{}{}
		}
		res.assigns[r] = as
	}
	return res, nil
}

var errCycle = errors.New("rbac: inheritance cycle")

func closureOf(m Matrix, root Role) (map[Role]struct{}, error) {
	out := map[Role]struct{}{root: {}}
	var walk func(r Role, path map[Role]bool) error
	walk = func(r Role, path map[Role]bool) error {
		for _, in := range m.Roles[r].Inherits {
			if path[in] || in == root {
				return fmt.Errorf("%w at %s -> %s", errCycle, r, in)
			}
			out[in] = struct{}{}
			path[in] = true
			if err := walk(in, path); err != nil {
				return err
			}
			delete(path, in)
		}
		return nil
	}
	if err := walk(root, map[Role]bool{root: true}); err != nil {
		return nil, err
	}
	return out, nil
}

// Default construye un Resolver con DefaultMatrix.
func Default() *Resolver {
	r, err := NewResolver(DefaultMatrix())
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve devuelve los permisos efectivos de role. Rol desconocido -> conjunto vacío.
func (r *Resolver) Resolve(role Role) PermissionSet {
	if s, ok := r.effective[role]; ok {
		return s
	}
	return newPermissionSet()
}

// HasPermission informa si role tiene p.
func (r *Resolver) HasPermission(role Role, p Permission) bool {
	return r.Resolve(role).Has(p)
}

// HasAny informa si role tiene al menos uno de perms. Lista vacía -> false.
func (r *Resolver) HasAny(role Role, perms ...Permission) bool {
	set := r.Resolve(role)
	for _, p := range perms {
		if set.Has(p) {
			return true
		}
	}
	return false
}

// HasAll informa si role tiene todos los perms. Lista vacía -> true.
func (r *Resolver) HasAll(role Role, perms ...Permission) bool {
	set := r.Resolve(role)
	for _, p := range perms {
		if !set.Has(p) {
			return false
		}
	}
	return true
}

// Subsumes informa si a incluye a b en la jerarquía (a == b cuenta).
func (r *Resolver) Subsumes(a, b Role) bool {
	_, ok := r.closure[a][b]
	return ok
}

// Outranks informa si a está estrictamente por encima de b.
func (r *Resolver) Outranks(a, b Role) bool {
	return a != b && r.Subsumes(a, b) && !r.Subsumes(b, a)
}

// CanAssign informa si un actor con rol inviter puede otorgar target.
func (r *Resolver) CanAssign(inviter, target Role) bool {
	_, ok := r.assigns[inviter][target]
	return ok
}
