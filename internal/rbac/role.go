// Package rbac resuelve roles a permisos efectivos y decide autoridad de gestión.
//
// Las tablas (herencia, grants directos y roles asignables) se cargan una vez
// y no se modifican; un *Resolver es seguro para uso concurrente.
package rbac

import (
	"fmt"
	"strings"
)

// Role es el conjunto cerrado de roles del sistema.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleCashier    Role = "cashier"
	RoleSeller     Role = "seller"
)

var allRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleCashier, RoleSeller}

// Roles devuelve los roles conocidos de mayor a menor jerarquía.
func Roles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// Valid informa si r pertenece al conjunto cerrado.
func (r Role) Valid() bool {
	for _, k := range allRoles {
		if r == k {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole normaliza y valida un nombre de rol.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("rbac: unknown role %q", s)
	}
	return r, nil
}
