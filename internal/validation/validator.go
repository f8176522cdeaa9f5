// Package validation valida DTOs de entrada e identificadores de tenant.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dropDatabas3/posguard/internal/domain/errs"
	"github.com/dropDatabas3/posguard/internal/rbac"
)

// Validator envuelve go-playground/validator con las reglas propias.
type Validator struct {
	v *validator.Validate
}

// New registra "role" y "tenant_id" y usa los nombres json en los errores.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return rbac.Role(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("tenant_id", func(fl validator.FieldLevel) bool {
		return ValidTenantID(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

var std = New()

// Struct valida s con el validador por defecto.
func Struct(s any) error { return std.Struct(s) }

// Email informa si s es una dirección válida.
func Email(s string) bool { return std.v.Var(s, "required,email") == nil }

// Struct valida s. Los errores de reglas vuelven como *Error.
func (x *Validator) Struct(s any) error {
	err := x.v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := &Error{Fields: make(map[string]string, len(ve))}
	for _, fe := range ve {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

// Error lista los campos inválidos con un mensaje por campo.
type Error struct {
	Fields map[string]string `json:"fields"`
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *Error) Unwrap() error { return errs.ErrInvalidInput }

// PublicDetail es el mensaje que puede verse del lado del cliente.
func (e *Error) PublicDetail() string {
	return strings.TrimPrefix(e.Error(), "validation failed: ")
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "role":
		return "is not a known role"
	case "tenant_id":
		return "is not a valid identifier"
	}
	return "is invalid"
}
