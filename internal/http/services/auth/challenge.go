package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/posguard/internal/domain/errs"
)

const challengePurpose = "2fa_login"

// challengeClaims identifica a quien ya pasó la contraseña y debe presentar
// el segundo factor. No sirve como credencial de sesión.
type challengeClaims struct {
	Purpose string `json:"pur"`
	jwt.RegisteredClaims
}

type challengeSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func newChallengeSigner(secret, issuer string, ttl time.Duration, now func() time.Time) *challengeSigner {
	return &challengeSigner{secret: []byte(secret), issuer: issuer, ttl: ttl, now: now}
}

// Issue firma un desafío HS256 para identityID.
func (c *challengeSigner) Issue(identityID string) (string, time.Time, error) {
	if len(c.secret) == 0 {
		return "", time.Time{}, errors.New("auth: challenge secret not configured")
	}
	now := c.now()
	exp := now.Add(c.ttl)
	claims := challengeClaims{
		Purpose: challengePurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Parse valida firma, issuer, vencimiento y propósito. Devuelve el subject.
func (c *challengeSigner) Parse(raw string) (string, error) {
	if raw == "" || len(c.secret) == 0 {
		return "", fmt.Errorf("auth: challenge missing: %w", errs.ErrUnauthorized)
	}
	var claims challengeClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: challenge expired: %w", errs.ErrUnauthorized)
		}
		return "", fmt.Errorf("auth: challenge invalid: %w", errs.ErrUnauthorized)
	}
	if claims.Purpose != challengePurpose || claims.Subject == "" {
		return "", fmt.Errorf("auth: challenge purpose: %w", errs.ErrUnauthorized)
	}
	return claims.Subject, nil
}
