package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTenantID(t *testing.T) {
	for _, v := range []string{"a", "org-1", "store_02", "9b7f3c8e-0000-4000-8000-000000000001", strings.Repeat("a", 64)} {
		assert.True(t, ValidTenantID(v), v)
	}
	for _, v := range []string{"", "-org", "org-", "Org", "org 1", "org/1", strings.Repeat("a", 65)} {
		assert.False(t, ValidTenantID(v), v)
	}
}

type inviteReq struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,role"`
	Org   string `json:"organization_id" validate:"omitempty,tenant_id"`
	Code  string `json:"code" validate:"omitempty,len=6,numeric"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(inviteReq{Email: "a@b.co", Role: "cashier", Org: "org-1"}))

	err := Struct(inviteReq{Email: "nope", Role: "root", Org: "Org 1", Code: "12a"})
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must be a valid email address", ve.Fields["email"])
	assert.Equal(t, "is not a known role", ve.Fields["role"])
	assert.Equal(t, "is not a valid identifier", ve.Fields["organization_id"])
	assert.Contains(t, ve.Fields, "code")
	assert.True(t, strings.HasPrefix(err.Error(), "validation failed: code:"))
}

func TestEmail(t *testing.T) {
	assert.True(t, Email("nuevo@example.com"))
	assert.False(t, Email(""))
	assert.False(t, Email("nuevo@"))
}
