package helpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	t.Run("ok", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co"}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		var p payload
		require.True(t, ReadJSON(w, r, &p))
		assert.Equal(t, "a@b.co", p.Email)
	})

	t.Run("wrong content type", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		assert.False(t, ReadJSON(w, r, &payload{}))
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"role":"admin"}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		assert.False(t, ReadJSON(w, r, &payload{}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_JSON")
	})

	t.Run("too large", func(t *testing.T) {
		big := `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		assert.False(t, ReadJSON(w, r, &payload{}))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestCookies(t *testing.T) {
	cfg := CookieConfig{SameSite: "Strict", Secure: true}
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	sid := cfg.SessionCookie("tok", exp)
	assert.Equal(t, "sid", sid.Name)
	assert.True(t, sid.HttpOnly)
	assert.True(t, sid.Secure)
	assert.Equal(t, http.SameSiteStrictMode, sid.SameSite)
	assert.Equal(t, exp, sid.Expires)

	csrf := cfg.CSRFCookie("c")
	assert.Equal(t, "csrf_token", csrf.Name)
	assert.False(t, csrf.HttpOnly)

	cleared := cfg.ClearSession()
	assert.Equal(t, -1, cleared.MaxAge)
	assert.Empty(t, cleared.Value)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "sid", Value: " tok "})
	assert.Equal(t, "tok", cfg.SessionToken(r))
	assert.Empty(t, cfg.CSRFToken(r))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "10.1.2.3", ClientIP(r, false), "proxy headers ignored when not trusted")
	assert.Equal(t, "203.0.113.9", ClientIP(r, true))
}

func TestDeviceLabel(t *testing.T) {
	cases := map[string]string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36": "Chrome on Windows",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 Version/17.5 Mobile/15E148 Safari/604.1": "Safari on iOS",
		"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0": "Firefox on Linux",
		"curl/8.5.0": "curl",
		"":           "Unknown device",
	}
	for ua, want := range cases {
		assert.Equal(t, want, DeviceLabel(ua), ua)
	}
}
