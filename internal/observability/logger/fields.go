package logger

import (
	"time"

	"go.uber.org/zap"
)

// ---- HTTP ----

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }

// Duration registra la duración en milisegundos.
func Duration(d time.Duration) zap.Field { return zap.Int64("duration_ms", d.Milliseconds()) }

// RouteClass es la clasificación del Gatekeeper (public, page, api).
func RouteClass(v string) zap.Field { return zap.String("route_class", v) }

// ---- Dominio ----

func IdentityID(v string) zap.Field   { return zap.String("identity_id", v) }
func OrganizationID(v string) zap.Field {
	return zap.String("organization_id", v)
}
func StoreID(v string) zap.Field      { return zap.String("store_id", v) }
func Role(v string) zap.Field         { return zap.String("role", v) }
func SessionID(v string) zap.Field    { return zap.String("session_id", v) }
func InvitationID(v string) zap.Field { return zap.String("invitation_id", v) }

// Email registra el email enmascarado (ver MaskEmail).
func Email(v string) zap.Field { return zap.String("email", MaskEmail(v)) }

// ---- Sistema ----

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }

func String(key, v string) zap.Field { return zap.String(key, v) }
func Int(key string, v int) zap.Field {
	return zap.Int(key, v)
}
func Int64(key string, v int64) zap.Field { return zap.Int64(key, v) }
func Bool(key string, v bool) zap.Field   { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field     { return zap.Any(key, v) }
