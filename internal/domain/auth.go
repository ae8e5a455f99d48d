package domain

import "time"

// Credential is the opaque signed token the backend issues on login.
type Credential string

// Empty reports whether no credential is present.
func (c Credential) Empty() bool {
	return c == ""
}

// Role is the coarse authorization tag carried by a credential.
type Role string

const (
	RoleTrader Role = "trader"
	RoleAdmin  Role = "admin"
)

// Roles lists every role the console understands.
func Roles() []Role {
	return []Role{RoleTrader, RoleAdmin}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleTrader, RoleAdmin:
		return true
	default:
		return false
	}
}

// Claims are the identity facts decoded from a Credential.
type Claims struct {
	Subject   string
	Role      Role
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the claims are no longer valid at t.
func (c Claims) ExpiredAt(t time.Time) bool {
	return !t.Before(c.ExpiresAt)
}

// IsAdmin reports whether the claims carry the admin role.
func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Registration describes a new console account.
type Registration struct {
	DisplayName string
	Identifier  string
	Secret      string
	Role        Role
}
