package helpers

import (
	"net/http"
	"strings"
	"time"
)

// CookieConfig describe cómo se emiten las cookies de sesión y CSRF.
type CookieConfig struct {
	SessionName string
	CSRFName    string
	Domain      string
	SameSite    string // Lax | Strict | None
	Secure      bool
}

func (c CookieConfig) sameSite() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (c CookieConfig) sessionName() string {
	if c.SessionName == "" {
		return "sid"
	}
	return c.SessionName
}

func (c CookieConfig) csrfName() string {
	if c.CSRFName == "" {
		return "csrf_token"
	}
	return c.CSRFName
}

// SessionCookie es HttpOnly; expira junto con la sesión.
func (c CookieConfig) SessionCookie(token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     c.sessionName(),
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.sameSite(),
	}
}

// CSRFCookie no es HttpOnly: el cliente la lee para copiarla al header.
func (c CookieConfig) CSRFCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     c.csrfName(),
		Value:    token,
		Path:     "/",
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.sameSite(),
	}
}

// ClearSession borra la cookie de sesión en el cliente.
func (c CookieConfig) ClearSession() *http.Cookie {
	ck := c.SessionCookie("", time.Unix(0, 0))
	ck.MaxAge = -1
	return ck
}

// SessionToken lee el token de sesión presentado, o "".
func (c CookieConfig) SessionToken(r *http.Request) string {
	return cookieValue(r, c.sessionName())
}

// CSRFToken lee la cookie CSRF, o "".
func (c CookieConfig) CSRFToken(r *http.Request) string {
	return cookieValue(r, c.csrfName())
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(ck.Value)
}
