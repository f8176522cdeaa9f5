// Package csrf emite y verifica tokens double-submit. Con sesión, el token
// es HMAC-SHA256(secret, token de sesión); sin sesión es un valor aleatorio
// que solo se compara contra la cookie.
package csrf

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dropDatabas3/posguard/internal/domain/errs"
	tokens "github.com/dropDatabas3/posguard/internal/security/token"
)

// ErrWeakSecret se devuelve si el secreto tiene menos de 32 bytes.
var ErrWeakSecret = errors.New("csrf: secret must be at least 32 bytes")

// Tokens emite y verifica tokens CSRF.
type Tokens struct {
	secret []byte
}

// New crea el emisor. El secreto debe tener al menos 32 bytes.
func New(secret string) (*Tokens, error) {
	if len(secret) < 32 {
		return nil, ErrWeakSecret
	}
	return &Tokens{secret: []byte(secret)}, nil
}

// Issue devuelve el token para la sesión dada, o uno aleatorio si no hay sesión.
func (t *Tokens) Issue(sessionToken string) (string, error) {
	if sessionToken == "" {
		return tokens.GenerateOpaque(tokens.DefaultBytes)
	}
	return t.bound(sessionToken), nil
}

// Verify exige que header y cookie coincidan y, con sesión, que el valor
// sea el derivado de esa sesión. Cualquier falla es ErrInvalidToken.
func (t *Tokens) Verify(cookie, header, sessionToken string) error {
	if cookie == "" || header == "" || !tokens.Equal(cookie, header) {
		return fmt.Errorf("csrf: missing or mismatched token: %w", errs.ErrInvalidToken)
	}
	if sessionToken != "" && !tokens.Equal(header, t.bound(sessionToken)) {
		return fmt.Errorf("csrf: token not bound to session: %w", errs.ErrInvalidToken)
	}
	return nil
}

func (t *Tokens) bound(sessionToken string) string {
	m := hmac.New(sha256.New, t.secret)
	m.Write([]byte("csrf:"))
	m.Write([]byte(sessionToken))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
