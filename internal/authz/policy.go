package authz

import (
	"context"
	"strings"

	"identityguard/internal/domain"
)

// DynamicRoleProvider resolves the role set a sensitive-data Policy grants
// access to at evaluation time (e.g. "whoever manages this record's
// category"), in addition to its static roles. An error fails the policy
// closed (spec §4.8).
type DynamicRoleProvider func(ctx context.Context, subject domain.Subject) (domain.RoleSet, error)

// Policy annotates a sensitive field or type with the authorities allowed
// to read it (spec §4.8).
type Policy struct {
	Field       string
	StaticRoles domain.RoleSet
	Dynamic     DynamicRoleProvider
}

// Evaluate reports whether subject may access the field p guards. Role
// comparison is case-sensitive but prefix-normalized, so "ADMIN" and
// "ROLE_ADMIN" denote the same authority. Any error from p.Dynamic fails
// the check closed.
func (p Policy) Evaluate(ctx context.Context, subject domain.Subject) (bool, error) {
	allowed := normalizeSet(p.StaticRoles)

	if p.Dynamic != nil {
		dynamicRoles, err := p.Dynamic(ctx, subject)
		if err != nil {
			return false, err
		}
		for norm := range normalizeSet(dynamicRoles) {
			allowed[norm] = struct{}{}
		}
	}

	for r := range normalizeSet(subject.Roles) {
		if _, ok := allowed[r]; ok {
			return true, nil
		}
	}
	return false, nil
}

// rolePrefix is stripped before comparing role names, so a role declared as
// "ROLE_ADMIN" by a Spring-Security-style authority store matches a policy
// declared with the bare name "ADMIN".
const rolePrefix = "ROLE_"

func normalizeSet(roles domain.RoleSet) map[string]struct{} {
	out := make(map[string]struct{}, len(roles))
	for r := range roles {
		out[strings.TrimPrefix(string(r), rolePrefix)] = struct{}{}
	}
	return out
}
