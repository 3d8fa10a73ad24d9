// Package authz implements AuthorizationCore (spec §4.8 C9): role-hierarchy
// membership checks, incompatible-role and privilege-escalation validation
// for role assignment, and a sensitive-data policy evaluator. Every entry
// point takes an explicit domain.Subject rather than recovering one from
// ambient/thread-local state (spec §9).
package authz

import "identityguard/internal/domain"

// Level is a role's position in the dominance ordering: a subject holding a
// role at level L satisfies any minimum-role check at level ≤ L.
type Level int

// Hierarchy holds the two static tables spec §3 names: a numeric level per
// role (from which the reflexive transitive dominance closure is derived)
// and a symmetric incompatibility map.
type Hierarchy struct {
	levels        map[domain.Role]Level
	incompatible  map[domain.Role]domain.RoleSet
	elevatedRoles domain.RoleSet
}

// NewHierarchy builds a Hierarchy from explicit tables. incompatible need
// only be declared in one direction per pair — NewHierarchy symmetrizes it.
// elevatedRoles is the set exempted from the privilege-escalation check in
// ValidateAssignment (spec §4.8: "currentRoles ∩ {ADMIN, SUPER_ADMIN,
// ROOT} ≠ ∅").
func NewHierarchy(levels map[domain.Role]Level, incompatible map[domain.Role][]domain.Role, elevatedRoles ...domain.Role) *Hierarchy {
	symmetrized := make(map[domain.Role]domain.RoleSet, len(incompatible))
	addIncompatible := func(a, b domain.Role) {
		set, ok := symmetrized[a]
		if !ok {
			set = domain.RoleSet{}
			symmetrized[a] = set
		}
		set[b] = struct{}{}
	}
	for a, others := range incompatible {
		for _, b := range others {
			addIncompatible(a, b)
			addIncompatible(b, a)
		}
	}

	return &Hierarchy{
		levels:        levels,
		incompatible:  symmetrized,
		elevatedRoles: domain.NewRoleSet(elevatedRoles...),
	}
}

// DefaultHierarchy wires the role set named in spec §4.8's worked examples:
// a ROOT > SUPER_ADMIN > ADMIN chain of authority over two parallel,
// mutually incompatible line-of-business roles, above a plain USER.
func DefaultHierarchy() *Hierarchy {
	return NewHierarchy(
		map[domain.Role]Level{
			"ROOT":             100,
			"SUPER_ADMIN":      90,
			"ADMIN":            80,
			"CATEGORY_MANAGER": 50,
			"SELLER":           50,
			"USER":             10,
		},
		map[domain.Role][]domain.Role{
			"SELLER": {"CATEGORY_MANAGER"},
		},
		"ADMIN", "SUPER_ADMIN", "ROOT",
	)
}

// Level reports r's dominance level. Unknown roles report level 0, ok=false.
func (h *Hierarchy) Level(r domain.Role) (Level, bool) {
	l, ok := h.levels[r]
	return l, ok
}

// HasRole reports whether subject directly holds role.
func (h *Hierarchy) HasRole(subject domain.Subject, role domain.Role) bool {
	return subject.Roles.Contains(role)
}

// HasAnyRole reports whether subject holds at least one of roles.
func (h *Hierarchy) HasAnyRole(subject domain.Subject, roles ...domain.Role) bool {
	for _, r := range roles {
		if subject.Roles.Contains(r) {
			return true
		}
	}
	return false
}

// HasMinimumRole reports whether some role held by subject has a level at
// least that of minimum — the dominance closure's reflexive-transitive
// membership test (spec §4.8).
func (h *Hierarchy) HasMinimumRole(subject domain.Subject, minimum domain.Role) bool {
	minLevel, ok := h.levels[minimum]
	if !ok {
		return false
	}
	for r := range subject.Roles {
		if l, ok := h.levels[r]; ok && l >= minLevel {
			return true
		}
	}
	return false
}

// highestLevel returns the highest level among roles, or the lowest
// possible Level if roles is empty or holds only unknown roles.
func (h *Hierarchy) highestLevel(roles domain.RoleSet) Level {
	highest := Level(-1 << 31)
	for r := range roles {
		if l, ok := h.levels[r]; ok && l > highest {
			highest = l
		}
	}
	return highest
}

// CanManage reports whether manager has authority over target: either they
// are the same subject, or manager's highest role level strictly exceeds
// target's (spec §4.8).
func (h *Hierarchy) CanManage(manager, target domain.Subject) bool {
	if manager.UserID != "" && manager.UserID == target.UserID {
		return true
	}
	return h.highestLevel(manager.Roles) > h.highestLevel(target.Roles)
}
