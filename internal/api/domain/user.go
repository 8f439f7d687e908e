package domain

// Role gates which lifecycle transitions a user may invoke
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleVolunteer Role = "volunteer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleVolunteer
}

// Identity is the acting user of a request
type Identity struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the identity carries the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
