// README: Common identifier type and user roles shared across modules.
package types

// ID is an opaque entity identifier (UUID string in practice).
type ID string

func (id ID) String() string { return string(id) }

// Role of an authenticated user as asserted by the identity provider.
type Role string

const (
	RoleClient Role = "client"
	RoleMedic  Role = "medic"
	RoleAdmin  Role = "admin"
)
