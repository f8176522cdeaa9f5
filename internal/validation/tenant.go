package validation

import "regexp"

// Identificadores de organización y sucursal:
// - minúsculas, dígitos y [_-] en el medio
// - empiezan y terminan con [a-z0-9]
// - largo 1..64
//
// Válidos: org-1, acme, store_02, 9b7f3c8e-0000-4000-8000-000000000001
// Inválidos: "", -org, org-, Org, "org 1", org/1
var tenantIDRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_-]{0,62}[a-z0-9])?$`)

// ValidTenantID informa si id es un identificador de organización o sucursal aceptable.
func ValidTenantID(id string) bool {
	return tenantIDRe.MatchString(id)
}
