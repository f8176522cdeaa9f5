package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dropDatabas3/posguard/internal/domain/errs"
)

// AppError es la forma estándar de los errores expuestos por la API.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa original, solo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// WithDetail devuelve una COPIA con el detalle agregado.
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithCause devuelve una COPIA con la causa agregada.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// Detailer lo implementan los errores de dominio que pueden mostrar un
// detalle seguro al cliente (campos inválidos, reglas de contraseña).
type Detailer interface {
	PublicDetail() string
}

// FromError traduce cualquier error a un AppError. Los sentinels de dominio
// se mapean a mensajes genéricos; lo desconocido es 500.
func FromError(err error) *AppError {
	var app *AppError
	if errors.As(err, &app) {
		return app
	}
	base, ok := byKind[errs.Kind(err)]
	if !ok {
		return ErrInternalServerError.WithCause(err)
	}
	out := base.WithCause(err)
	var d Detailer
	if errors.As(err, &d) {
		out.Detail = d.PublicDetail()
	}
	return out
}

// Los mensajes no distinguen "no existe" de "no autorizado" más de lo que
// ya distingue el status.
var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidInput = &AppError{
		Code:       "INVALID_INPUT",
		Message:    "Uno o más campos son inválidos.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnsupportedMediaType = &AppError{
		Code:       "UNSUPPORTED_MEDIA_TYPE",
		Message:    "Content-Type debe ser application/json.",
		HTTPStatus: http.StatusUnsupportedMediaType,
	}

	ErrBodyTooLarge = &AppError{
		Code:       "BODY_TOO_LARGE",
		Message:    "El cuerpo de la solicitud excede el tamaño máximo permitido.",
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Se requiere volver a autenticarse.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Las credenciales proporcionadas son inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidToken = &AppError{
		Code:       "INVALID_TOKEN",
		Message:    "El código o token presentado no es válido.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "No tiene permisos para realizar esta acción.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrInvalidCSRF = &AppError{
		Code:       "INVALID_CSRF_TOKEN",
		Message:    "Token CSRF ausente o inválido.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "Método HTTP no permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "El estado actual del recurso no permite la operación.",
		HTTPStatus: http.StatusConflict,
	}

	ErrExpired = &AppError{
		Code:       "EXPIRED",
		Message:    "El recurso ya no es válido.",
		HTTPStatus: http.StatusGone,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Demasiadas solicitudes. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error inesperado en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

var byKind = map[error]*AppError{
	errs.ErrUnauthorized: ErrUnauthorized,
	errs.ErrForbidden:    ErrForbidden,
	errs.ErrNotFound:     ErrNotFound,
	errs.ErrConflict:     ErrConflict,
	errs.ErrExpired:      ErrExpired,
	errs.ErrInvalidToken: ErrInvalidToken,
	errs.ErrRateLimited:  ErrRateLimitExceeded,
	errs.ErrInvalidInput: ErrInvalidInput,
}
