// Package tokens genera tokens opacos y sus huellas para persistir.
package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
)

// DefaultBytes es la entropía de tokens de sesión e invitación.
const DefaultBytes = 32

// ErrMalformed indica que el token no es base64url válido o tiene largo incorrecto.
var ErrMalformed = errors.New("tokens: malformed token")

// GenerateOpaque genera nBytes aleatorios en base64url sin padding.
func GenerateOpaque(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hash devuelve sha256(token) en base64url sin padding. Es lo único que se guarda.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// CheckShape valida que token decodifique a exactamente nBytes.
func CheckShape(token string, nBytes int) error {
	if len(token) != base64.RawURLEncoding.EncodedLen(nBytes) {
		return ErrMalformed
	}
	if _, err := base64.RawURLEncoding.DecodeString(token); err != nil {
		return ErrMalformed
	}
	return nil
}

// Equal compara dos strings en tiempo constante.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
