// Package migrations embebe las migraciones SQL de Postgres.
package migrations

import "embed"

// FS contiene las migraciones del esquema.
//
//go:embed schema/*.sql
var FS embed.FS

// Dir es el directorio dentro de FS donde viven las migraciones.
const Dir = "schema"
