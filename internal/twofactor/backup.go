package twofactor

import (
	"crypto/rand"
	"strings"

	tokens "github.com/dropDatabas3/posguard/internal/security/token"
)

const (
	backupAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // sin I, O, 0, 1
	backupLen      = 10
)

// generateBackupCodes devuelve los códigos en claro (para mostrar una vez)
// y sus hashes (para guardar).
func generateBackupCodes(count int) (plain, hashes []string, err error) {
	plain = make([]string, count)
	hashes = make([]string, count)
	buf := make([]byte, backupLen)
	for i := 0; i < count; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, nil, err
		}
		code := make([]byte, backupLen)
		for j, b := range buf {
			// 256 es múltiplo de 32: el módulo no introduce sesgo
			code[j] = backupAlphabet[int(b)%len(backupAlphabet)]
		}
		plain[i] = string(code)
		hashes[i] = hashBackupCode(plain[i])
	}
	return plain, hashes, nil
}

// normalizeBackupCode tolera minúsculas, espacios y guiones al tipear.
func normalizeBackupCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("-", "", " ", "").Replace(s)
}

func hashBackupCode(code string) string {
	return tokens.Hash(normalizeBackupCode(code))
}
