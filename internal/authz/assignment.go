package authz

import (
	"fmt"

	"identityguard/internal/domain"
)

// Reason is the machine-checkable rejection reason ValidateAssignment
// returns, distinct from apperr.Kind since role-assignment validation isn't
// one of the core operations spec §7's error table enumerates.
type Reason string

const (
	ReasonIncompatibleRoles   Reason = "INCOMPATIBLE_ROLES"
	ReasonPrivilegeEscalation Reason = "PRIVILEGE_ESCALATION"
)

// AssignmentError is returned by ValidateAssignment when proposedRoles
// cannot be granted.
type AssignmentError struct {
	Reason Reason
	Detail string
}

func (e *AssignmentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// ValidateAssignment implements spec §4.8: proposedRoles is rejected if any
// two of its members are mutually incompatible, or — unless currentRoles
// already holds an elevated role — if some proposed role outranks every
// role currentRoles already holds.
func (h *Hierarchy) ValidateAssignment(proposedRoles, currentRoles domain.RoleSet) error {
	proposed := proposedRoles.Slice()
	for i, a := range proposed {
		for _, b := range proposed[i+1:] {
			if incompatibleSet, ok := h.incompatible[a]; ok && incompatibleSet.Contains(b) {
				return &AssignmentError{
					Reason: ReasonIncompatibleRoles,
					Detail: fmt.Sprintf("%s and %s are mutually incompatible", a, b),
				}
			}
		}
	}

	if currentRoles.Intersects(h.elevatedRoles) {
		return nil
	}

	for _, p := range proposed {
		if !h.dominatedBySome(p, currentRoles) {
			return &AssignmentError{
				Reason: ReasonPrivilegeEscalation,
				Detail: fmt.Sprintf("proposed role %s exceeds the assigner's own authority", p),
			}
		}
	}
	return nil
}

// dominatedBySome reports whether some role in current has a level at least
// that of p — i.e. p is at or below some role current already holds.
func (h *Hierarchy) dominatedBySome(p domain.Role, current domain.RoleSet) bool {
	pLevel, ok := h.levels[p]
	if !ok {
		return false
	}
	for c := range current {
		if cLevel, ok := h.levels[c]; ok && cLevel >= pLevel {
			return true
		}
	}
	return false
}
