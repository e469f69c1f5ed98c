package authz_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"appmonitor/internal/authz"
	"appmonitor/pkg/companies"
)

func newAuthorizer(t *testing.T) *authz.Authorizer {
	t.Helper()
	az, err := authz.New("", zap.NewNop().Sugar())
	require.NoError(t, err)
	return az
}

func TestPlatformAdminManagesAnyCompany(t *testing.T) {
	az := newAuthorizer(t)
	u := companies.User{ID: "u1", IsAdmin: true}
	require.True(t, az.CanManageCompany(context.Background(), u, "co-1"))
	require.True(t, az.CanManageCompany(context.Background(), u, "co-2"))
}

func TestCompanyAdminManagesOwnCompanyOnly(t *testing.T) {
	az := newAuthorizer(t)
	u := companies.User{ID: "u1", CompanyID: "co-1", Role: "admin"}
	require.True(t, az.CanManageCompany(context.Background(), u, "co-1"))
	require.False(t, az.CanManageCompany(context.Background(), u, "co-2"))
}

func TestRegularUserCannotManage(t *testing.T) {
	az := newAuthorizer(t)
	u := companies.User{ID: "u1", CompanyID: "co-1", Role: "user"}
	require.False(t, az.CanManageCompany(context.Background(), u, "co-1"))
}

func TestCustomPolicyFile(t *testing.T) {
	policy := `package appmonitor.authz

default allow = false

allow {
	input.user.role == "owner"
}
`
	path := filepath.Join(t.TempDir(), "authz.rego")
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o600))

	az, err := authz.New(path, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.True(t, az.CanManageCompany(context.Background(), companies.User{Role: "owner"}, "co-1"))
	require.False(t, az.CanManageCompany(context.Background(), companies.User{IsAdmin: true}, "co-1"),
		"custom policy replaces the built-in rules")
}

func TestBadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz.rego")
	require.NoError(t, os.WriteFile(path, []byte("not rego at all {{{"), 0o600))
	_, err := authz.New(path, zap.NewNop().Sugar())
	require.Error(t, err)
}
