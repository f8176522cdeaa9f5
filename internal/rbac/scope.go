package rbac

import "fmt"

// Scope es el alcance de tenant de una identidad o invitación.
// OrganizationID vacío significa alcance de plataforma.
type Scope struct {
	OrganizationID string `json:"organization_id,omitempty"`
	StoreID        string `json:"store_id,omitempty"`
}

// Platform informa si el scope abarca toda la plataforma.
func (s Scope) Platform() bool { return s.OrganizationID == "" }

// Contains informa si s abarca o.
func (s Scope) Contains(o Scope) bool {
	if s.Platform() {
		return true
	}
	if s.OrganizationID != o.OrganizationID {
		return false
	}
	return s.StoreID == "" || s.StoreID == o.StoreID
}

// ValidFor verifica que el scope tenga sentido para el rol.
func (s Scope) ValidFor(role Role) error {
	if s.StoreID != "" && s.OrganizationID == "" {
		return fmt.Errorf("rbac: store %q without organization", s.StoreID)
	}
	if s.Platform() && role != RoleSuperAdmin {
		return fmt.Errorf("rbac: role %s requires an organization scope", role)
	}
	return nil
}

func (s Scope) String() string {
	switch {
	case s.Platform():
		return "*"
	case s.StoreID == "":
		return s.OrganizationID
	default:
		return s.OrganizationID + "/" + s.StoreID
	}
}
