package repository

import (
	"errors"

	"github.com/dropDatabas3/posguard/internal/domain/errs"
)

// Los sentinels del repositorio son los mismos valores de la taxonomía de dominio,
// así los managers pueden propagarlos sin traducir.
var (
	// ErrNotFound indica que el registro no existe.
	ErrNotFound = errs.ErrNotFound

	// ErrConflict indica duplicado o transición condicional perdida.
	ErrConflict = errs.ErrConflict

	// ErrExpired indica que el registro existe pero ya venció.
	ErrExpired = errs.ErrExpired

	// ErrInvalidInput indica datos incompletos para la operación.
	ErrInvalidInput = errs.ErrInvalidInput
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
