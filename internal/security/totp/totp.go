// Package totp envuelve github.com/pquerna/otp con los parámetros fijos del
// POS (SHA1, 6 dígitos, paso de 30s) y agrega verificación por paso para
// rechazar códigos ya usados.
package totp

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	Period  = 30
	Digits  = 6
	SecretN = 20
)

// ErrSecret indica un secreto base32 inválido.
var ErrSecret = errors.New("totp: invalid secret")

var codeOpts = totp.ValidateOpts{
	Period:    Period,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Key es un secreto recién generado con su URI otpauth:// para el QR.
type Key struct {
	Secret string // base32 sin padding
	URI    string
}

// Generate crea un secreto de 20 bytes para account bajo issuer.
func Generate(issuer, account string) (*Key, error) {
	k, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		SecretSize:  SecretN,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	return &Key{Secret: k.Secret(), URI: k.URL()}, nil
}

// Step devuelve el contador de paso para t.
func Step(t time.Time) int64 { return t.Unix() / Period }

// Code genera el código del paso step para un secreto base32.
func Code(secret string, step int64) (string, error) {
	c, err := totp.GenerateCodeCustom(normalize(secret), time.Unix(step*Period, 0), codeOpts)
	if err != nil {
		return "", ErrSecret
	}
	return c, nil
}

// Verify busca code en [step-skew, step+skew]. Los pasos <= lastUsed se
// ignoran. Devuelve el paso que coincidió.
func Verify(secret, code string, t time.Time, skew int, lastUsed *int64) (bool, int64) {
	code = strings.TrimSpace(code)
	if len(code) != Digits {
		return false, 0
	}
	now := Step(t)
	for s := now - int64(skew); s <= now+int64(skew); s++ {
		if lastUsed != nil && s <= *lastUsed {
			continue
		}
		want, err := Code(secret, s)
		if err != nil {
			return false, 0
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return true, s
		}
	}
	return false, 0
}

func normalize(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
}
