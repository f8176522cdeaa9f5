package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Resource es el sujeto de un permiso.
type Resource string

// Action es la operación sobre un Resource.
type Action string

const (
	ResOrganizations Resource = "organizations"
	ResStores        Resource = "stores"
	ResUsers         Resource = "users"
	ResInvitations   Resource = "invitations"
	ResProducts      Resource = "products"
	ResOrders        Resource = "orders"
	ResInventory     Resource = "inventory"
	ResBilling       Resource = "billing"
	ResAnalytics     Resource = "analytics"
	ResSessions      Resource = "sessions"
	ResSettings      Resource = "settings"
)

const (
	ActRead   Action = "read"
	ActCreate Action = "create"
	ActUpdate Action = "update"
	ActDelete Action = "delete"
	ActManage Action = "manage"
)

var (
	resources = []Resource{
		ResOrganizations, ResStores, ResUsers, ResInvitations, ResProducts, ResOrders,
		ResInventory, ResBilling, ResAnalytics, ResSessions, ResSettings,
	}
	actions = []Action{ActRead, ActCreate, ActUpdate, ActDelete, ActManage}
)

// Permission es un par (recurso, acción). Solo se construye con valores conocidos.
type Permission struct {
	resource Resource
	action   Action
}

// NewPermission valida el par y devuelve el permiso.
func NewPermission(r Resource, a Action) (Permission, error) {
	if !knownResource(r) {
		return Permission{}, fmt.Errorf("rbac: unknown resource %q", r)
	}
	if !knownAction(a) {
		return Permission{}, fmt.Errorf("rbac: unknown action %q", a)
	}
	return Permission{resource: r, action: a}, nil
}

// ParsePermission acepta la forma "resource.action".
func ParsePermission(s string) (Permission, error) {
	res, act, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return Permission{}, fmt.Errorf("rbac: malformed permission %q", s)
	}
	return NewPermission(Resource(res), Action(act))
}

func mustPermission(r Resource, a Action) Permission {
	p, err := NewPermission(r, a)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Permission) Resource() Resource { return p.resource }
func (p Permission) Action() Action     { return p.action }
func (p Permission) IsZero() bool       { return p.resource == "" }

func (p Permission) String() string {
	return string(p.resource) + "." + string(p.action)
}

// MarshalText permite serializar permisos como "resource.action".
func (p Permission) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func knownResource(r Resource) bool {
	for _, k := range resources {
		if k == r {
			return true
		}
	}
	return false
}

func knownAction(a Action) bool {
	for _, k := range actions {
		if k == a {
			return true
		}
	}
	return false
}

// Permisos con nombre usados fuera del paquete.
var (
	PermUsersCreate       = mustPermission(ResUsers, ActCreate)
	PermUsersRead         = mustPermission(ResUsers, ActRead)
	PermInvitationsCreate = mustPermission(ResInvitations, ActCreate)
	PermInvitationsRead   = mustPermission(ResInvitations, ActRead)
	PermInvitationsDelete = mustPermission(ResInvitations, ActDelete)
	PermSessionsRead      = mustPermission(ResSessions, ActRead)
	PermSessionsManage    = mustPermission(ResSessions, ActManage)
	PermSettingsRead      = mustPermission(ResSettings, ActRead)
	PermSettingsUpdate    = mustPermission(ResSettings, ActUpdate)
	PermOrganizationsRead = mustPermission(ResOrganizations, ActRead)
)

// PermissionSet es un conjunto inmutable de permisos.
type PermissionSet struct {
	m map[Permission]struct{}
}

func newPermissionSet(perms ...Permission) PermissionSet {
	m := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		m[p] = struct{}{}
	}
	return PermissionSet{m: m}
}

// Has informa si p está en el conjunto.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s.m[p]
	return ok
}

// Len devuelve la cantidad de permisos.
func (s PermissionSet) Len() int { return len(s.m) }

// Contains informa si s es superconjunto de o.
func (s PermissionSet) Contains(o PermissionSet) bool {
	for p := range o.m {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Slice devuelve los permisos ordenados por nombre.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s.m))
	for p := range s.m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Strings devuelve los nombres ordenados.
func (s PermissionSet) Strings() []string {
	ps := s.Slice()
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}
