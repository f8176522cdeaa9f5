// Package repository define las interfaces de acceso a datos del núcleo.
//
// Son contratos independientes del almacenamiento; las implementaciones viven
// en internal/store/pg (producción) e internal/store/memory (dev y tests).
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - Solo se persisten hashes de tokens, nunca el token crudo.
//   - Toda transición de estado relevante para la corrección es una única
//     escritura condicional; el perdedor de una carrera recibe ErrConflict.
//   - Los errores de dominio están en errors.go.
package repository
