package email

import (
	"errors"
	"net"
	"strings"
)

// SMTPDiag clasifica un error SMTP.
type SMTPDiag struct {
	Code      string // auth|tls|dial|timeout|rate_limited|invalid_recipient|rejected|network|unknown
	Temporary bool   // si conviene reintentar
}

// SendError envuelve el error del proveedor junto a su diagnóstico.
type SendError struct {
	Diag SMTPDiag
	Err  error
}

func (e *SendError) Error() string { return "email: smtp send (" + e.Diag.Code + "): " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// DiagnoseSMTP infiere la causa a partir del error y su texto.
func DiagnoseSMTP(err error) SMTPDiag {
	if err == nil {
		return SMTPDiag{Code: "unknown"}
	}
	var ne net.Error
	isNet := errors.As(err, &ne)
	if isNet && ne.Timeout() {
		return SMTPDiag{Code: "timeout", Temporary: true}
	}

	s := strings.ToLower(err.Error())
	switch {
	case containsAny(s, "timeout"):
		return SMTPDiag{Code: "timeout", Temporary: true}
	case containsAny(s, "connection refused", "no such host", "dial tcp"):
		return SMTPDiag{Code: "dial", Temporary: true}
	case strings.Contains(s, "x509:") || (strings.Contains(s, "tls") && containsAny(s, "handshake", "certificate")):
		return SMTPDiag{Code: "tls"}
	case containsAny(s, "535", "5.7.8", "authentication failed", "username and password not accepted"):
		return SMTPDiag{Code: "auth"}
	case containsAny(s, "421", "451", "4.7.0", "rate limit", "try again later"):
		return SMTPDiag{Code: "rate_limited", Temporary: true}
	case containsAny(s, "5.1.1", "user unknown", "mailbox not found"):
		return SMTPDiag{Code: "invalid_recipient"}
	case containsAny(s, "5.7.1", "message rejected", "dmarc", "spf"):
		return SMTPDiag{Code: "rejected"}
	case isNet:
		return SMTPDiag{Code: "network", Temporary: true}
	}
	return SMTPDiag{Code: "unknown"}
}
