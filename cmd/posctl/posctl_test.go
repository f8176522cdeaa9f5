package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/posguard/internal/domain/repository"
	"github.com/dropDatabas3/posguard/internal/rbac"
	"github.com/dropDatabas3/posguard/internal/security/password"
	"github.com/dropDatabas3/posguard/internal/store/memory"
)

var cheap = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 16}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CACHE_KIND", "memory")
	t.Setenv("APP_ENV", "dev")
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", "does-not-exist.env"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoles_Text(t *testing.T) {
	out, err := run(t, "roles")
	require.NoError(t, err)
	assert.Contains(t, out, "ROLE")
	for _, r := range rbac.Roles() {
		assert.Contains(t, out, string(r))
	}
}

func TestRoles_YAML(t *testing.T) {
	out, err := run(t, "roles", "--format", "yaml")
	require.NoError(t, err)
	var parsed map[string][]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &parsed))
	assert.Contains(t, parsed["manager"], "invitations.create")
	assert.NotContains(t, parsed["cashier"], "invitations.create")
	assert.Len(t, parsed, len(rbac.Roles()))
}

func TestRoles_UnknownFormat(t *testing.T) {
	_, err := run(t, "roles", "--format", "xml")
	assert.Error(t, err)
}

func TestMaintenanceOnMemory(t *testing.T) {
	out, err := run(t, "invitations", "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "expired 0 invitation(s)")

	out, err = run(t, "sessions", "purge")
	require.NoError(t, err)
	assert.Contains(t, out, "purged 0 session(s)")
}

func TestMigrate_RequiresPostgres(t *testing.T) {
	_, err := run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driver=postgres")
}

func TestBootstrapAdmin(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   adminInput
		ok   bool
	}{
		{"super admin", adminInput{Email: " Root@Example.com ", Role: "super_admin", Password: "longenough1"}, true},
		{"org admin", adminInput{Email: "a@example.com", Role: "admin", OrgID: "org-1", Password: "longenough1"}, true},
		{"admin without org", adminInput{Email: "b@example.com", Role: "admin", Password: "longenough1"}, false},
		{"store without org", adminInput{Email: "c@example.com", Role: "super_admin", StoreID: "s1", Password: "longenough1"}, false},
		{"unknown role", adminInput{Email: "d@example.com", Role: "owner", Password: "longenough1"}, false},
		{"bad email", adminInput{Email: "nope", Role: "super_admin", Password: "longenough1"}, false},
		{"weak password", adminInput{Email: "e@example.com", Role: "super_admin", Password: "short"}, false},
		{"empty password", adminInput{Email: "f@example.com", Role: "super_admin"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := memory.New()
			id, err := bootstrapAdmin(ctx, st.Identities(), tc.in, password.DefaultPolicy, cheap, now)
			if !tc.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, err := st.Identities().GetByEmail(ctx, tc.in.Email)
			require.NoError(t, err)
			assert.Equal(t, id.ID, got.ID)
			assert.True(t, password.Verify(tc.in.Password, got.PasswordHash))
			assert.Equal(t, strings.TrimSpace(strings.ToLower(tc.in.Email)), got.Email)
		})
	}
}

func TestBootstrapAdmin_Duplicate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	in := adminInput{Email: "root@example.com", Role: "super_admin", Password: "longenough1"}
	_, err := bootstrapAdmin(ctx, st.Identities(), in, password.DefaultPolicy, cheap, time.Now())
	require.NoError(t, err)
	_, err = bootstrapAdmin(ctx, st.Identities(), in, password.DefaultPolicy, cheap, time.Now())
	assert.ErrorIs(t, err, repository.ErrConflict)
}
