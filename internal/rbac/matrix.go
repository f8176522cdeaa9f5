package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoleSpec describe un rol dentro de la matriz.
//
//	manager:
//	  inherits: [cashier, seller]
//	  grants:   [products.create, invitations.create]
//	  assigns:  [cashier, seller]
type RoleSpec struct {
	Inherits []Role   `yaml:"inherits"`
	Grants   []string `yaml:"grants"`
	Assigns  []Role   `yaml:"assigns"`
}

// Matrix es la tabla declarativa rol -> (herencia, grants, asignables).
type Matrix struct {
	Roles map[Role]RoleSpec `yaml:"roles"`
}

// DefaultMatrix es la matriz de fábrica del POS.
func DefaultMatrix() Matrix {
	return Matrix{Roles: map[Role]RoleSpec{
		RoleSeller: {
			Grants: []string{
				"products.read", "orders.read", "orders.create", "inventory.read",
			},
		},
		RoleCashier: {
			Grants: []string{
				"products.read", "orders.read", "orders.create", "orders.update", "inventory.read",
			},
		},
		RoleManager: {
			Inherits: []Role{RoleCashier, RoleSeller},
			Grants: []string{
				"products.create", "products.update", "products.delete",
				"inventory.create", "inventory.update",
				"orders.delete", "stores.read", "users.read", "analytics.read",
				"invitations.create", "invitations.read", "invitations.delete",
				"sessions.read", "sessions.manage",
			},
			Assigns: []Role{RoleCashier, RoleSeller},
		},
		RoleAdmin: {
			Inherits: []Role{RoleManager},
			Grants: []string{
				"users.create", "users.update", "users.delete",
				"stores.create", "stores.update", "stores.delete",
				"organizations.read", "billing.read",
				"settings.read", "settings.update",
			},
			Assigns: []Role{RoleManager, RoleCashier, RoleSeller},
		},
		RoleSuperAdmin: {
			Inherits: []Role{RoleAdmin},
			Grants: []string{
				"organizations.create", "organizations.update", "organizations.delete", "organizations.manage",
				"billing.manage", "settings.manage", "users.manage", "stores.manage",
			},
			Assigns: []Role{RoleSuperAdmin, RoleAdmin, RoleManager, RoleCashier, RoleSeller},
		},
	}}
}

// LoadMatrix lee una matriz YAML. Los roles ausentes toman la definición por defecto.
func LoadMatrix(path string) (Matrix, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Matrix{}, fmt.Errorf("rbac: read matrix: %w", err)
	}
	var m Matrix
	if err := yaml.Unmarshal(b, &m); err != nil {
		return Matrix{}, fmt.Errorf("rbac: parse matrix: %w", err)
	}
	def := DefaultMatrix()
	if m.Roles == nil {
		m.Roles = map[Role]RoleSpec{}
	}
	for r, rs := range def.Roles {
		if _, ok := m.Roles[r]; !ok {
			m.Roles[r] = rs
		}
	}
	return m, nil
}
