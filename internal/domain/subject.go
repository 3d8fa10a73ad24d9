package domain

// Subject is the authenticated principal's effective identity and authority
// set at a point in time (GLOSSARY). It is threaded explicitly through every
// AuthorizationCore call rather than recovered from ambient/thread-local
// state (spec §9).
type Subject struct {
	UserID string
	Roles  RoleSet
}

// NewSubject builds a Subject from a user id and role slice.
func NewSubject(userID string, roles ...Role) Subject {
	return Subject{UserID: userID, Roles: NewRoleSet(roles...)}
}
