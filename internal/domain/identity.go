package domain

// Role enumerates the field roles that act on issues.
type Role string

const (
	RoleAuditor         Role = "auditor"
	RoleRegionalManager Role = "rm"
	RoleAdmin           Role = "admin"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	switch r {
	case RoleAuditor, RoleRegionalManager, RoleAdmin:
		return true
	}
	return false
}

// Identity is the acting caller supplied with every mutating operation.
type Identity struct {
	ID      string
	Name    string
	Role    Role
	IsAdmin bool
}

// Admin reports whether the identity carries administrative privilege.
func (i Identity) Admin() bool {
	return i.IsAdmin || i.Role == RoleAdmin
}

// Ref returns the display reference stored on issues.
func (i Identity) Ref() IdentityRef {
	return IdentityRef{ID: i.ID, Name: i.Name}
}

// IdentityRef points at a user by id; Name is filled by joins.
type IdentityRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
