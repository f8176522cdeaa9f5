package dto

import "github.com/dropDatabas3/posguard/internal/session"

// SessionsResponse es la respuesta de GET /api/v1/sessions.
type SessionsResponse struct {
	Items []session.View `json:"items"`
}

// RevokeAllResponse es la respuesta de POST /api/v1/sessions/revoke-all.
type RevokeAllResponse struct {
	Revoked int `json:"revoked"`
}
