// Package errs define la taxonomía de errores del núcleo de autorización.
//
// Los managers envuelven estos sentinels con fmt.Errorf("...: %w", errs.ErrX)
// y la capa HTTP los traduce a mensajes genéricos con errors.Is.
package errs

import "errors"

var (
	// ErrUnauthorized: falta sesión o la sesión no es válida.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden: identidad conocida pero sin permiso, rol o scope suficiente.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound: token o recurso inexistente o malformado.
	ErrNotFound = errors.New("not found")

	// ErrConflict: estado incompatible con la transición pedida.
	ErrConflict = errors.New("conflict")

	// ErrExpired: invitación o desafío vencido.
	ErrExpired = errors.New("expired")

	// ErrInvalidToken: código TOTP, backup code o CSRF inválido.
	ErrInvalidToken = errors.New("invalid token")

	// ErrRateLimited: se superó el cupo de la ventana.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidInput: datos de entrada mal formados.
	ErrInvalidInput = errors.New("invalid input")
)

// Kind devuelve el sentinel de la taxonomía que envuelve err, o nil.
func Kind(err error) error {
	for _, k := range []error{
		ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict,
		ErrExpired, ErrInvalidToken, ErrRateLimited, ErrInvalidInput,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
