package password

import "unicode"

// Policy define los requisitos mínimos para contraseñas nuevas
// (alta por invitación).
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
}

// DefaultPolicy es la política usada al aceptar invitaciones.
var DefaultPolicy = Policy{MinLength: 10, MaxLength: 128, RequireLower: true, RequireDigit: true}

// Validate devuelve ok y la lista de motivos de rechazo (too_short, missing_digit, ...).
func (p Policy) Validate(s string) (bool, []string) {
	var reasons []string
	n := len([]rune(s))
	if n < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		reasons = append(reasons, "too_long")
	}
	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			symbol = true
		}
	}
	if p.RequireUpper && !upper {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !lower {
		reasons = append(reasons, "missing_lower")
	}
	if p.RequireDigit && !digit {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !symbol {
		reasons = append(reasons, "missing_symbol")
	}
	return len(reasons) == 0, reasons
}
