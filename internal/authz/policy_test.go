package authz_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"identityguard/internal/authz"
	"identityguard/internal/domain"
)

func TestPolicy_Evaluate_StaticRoleMatch(t *testing.T) {
	t.Parallel()

	policy := authz.Policy{Field: "ssn", StaticRoles: domain.NewRoleSet("ADMIN")}
	subject := domain.NewSubject("u1", "ADMIN")

	ok, err := policy.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPolicy_Evaluate_PrefixNormalizedButCaseSensitive(t *testing.T) {
	t.Parallel()

	policy := authz.Policy{Field: "ssn", StaticRoles: domain.NewRoleSet("ROLE_ADMIN")}

	matches := domain.NewSubject("u1", "ADMIN")
	ok, err := policy.Evaluate(context.Background(), matches)
	require.NoError(t, err)
	require.True(t, ok, `"ADMIN" and "ROLE_ADMIN" must denote the same authority`)

	wrongCase := domain.NewSubject("u2", "admin")
	ok, err = policy.Evaluate(context.Background(), wrongCase)
	require.NoError(t, err)
	require.False(t, ok, "comparison is case-sensitive")
}

func TestPolicy_Evaluate_DynamicRolesAreUnionedWithStatic(t *testing.T) {
	t.Parallel()

	policy := authz.Policy{
		Field:       "category-report",
		StaticRoles: domain.NewRoleSet("ADMIN"),
		Dynamic: func(_ context.Context, _ domain.Subject) (domain.RoleSet, error) {
			return domain.NewRoleSet("CATEGORY_MANAGER"), nil
		},
	}
	subject := domain.NewSubject("u1", "CATEGORY_MANAGER")

	ok, err := policy.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestPolicy_Evaluate_DynamicProviderErrorFailsClosed(t *testing.T) {
	t.Parallel()

	policy := authz.Policy{
		Field:       "ssn",
		StaticRoles: domain.NewRoleSet("USER"), // would otherwise match
		Dynamic: func(_ context.Context, _ domain.Subject) (domain.RoleSet, error) {
			return nil, errors.New("lookup backend unavailable")
		},
	}
	subject := domain.NewSubject("u1", "USER")

	ok, err := policy.Evaluate(context.Background(), subject)
	require.Error(t, err)
	require.False(t, ok, "evaluator errors must fail closed")
}

func TestPolicy_Evaluate_NoMatchDenies(t *testing.T) {
	t.Parallel()

	policy := authz.Policy{Field: "ssn", StaticRoles: domain.NewRoleSet("ADMIN")}
	subject := domain.NewSubject("u1", "USER")

	ok, err := policy.Evaluate(context.Background(), subject)
	require.NoError(t, err)
	require.False(t, ok)
}
