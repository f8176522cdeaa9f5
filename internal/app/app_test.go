package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/posguard/internal/config"
)

func devConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Driver = "memory"
	cfg.Cache.Kind = "memory"
	return cfg
}

func TestBuild_MemoryServesHealth(t *testing.T) {
	a, err := Build(context.Background(), devConfig(t), Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	for _, p := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}

	rec := httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuild_WithoutHTTP(t *testing.T) {
	a, err := Build(context.Background(), devConfig(t), Options{WithoutHTTP: true})
	require.NoError(t, err)
	assert.Nil(t, a.Handler)
	assert.NotNil(t, a.Invitations)
	assert.Error(t, a.Run(context.Background()))

	_, err = a.Migrate(context.Background())
	assert.Error(t, err)
}

func TestBuild_BadDSN(t *testing.T) {
	cfg := devConfig(t)
	cfg.Storage.Driver = "postgres"
	cfg.Storage.DSN = "postgres://%zz"
	_, err := Build(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestBuild_BadMasterKey(t *testing.T) {
	cfg := devConfig(t)
	cfg.Security.SecretBoxMasterKey = "short"
	_, err := Build(context.Background(), cfg, Options{})
	assert.Error(t, err)
}

func TestPasswordPolicy_OnlyHardens(t *testing.T) {
	cfg := devConfig(t)
	cfg.Security.PasswordPolicy.MinLength = 4
	cfg.Security.PasswordPolicy.RequireSymbol = true
	p := passwordPolicy(cfg)
	assert.Equal(t, 10, p.MinLength)
	assert.True(t, p.RequireLower)
	assert.True(t, p.RequireDigit)
	assert.True(t, p.RequireSymbol)
}
