// Package schema defines the data structures shared by the check-in store, the HTTP API
// and the remote client. JSON field names match the persisted layout.
package schema

import "time"

// Role is the access level of a user.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleEmployee || r == RoleAdmin
}

// User is an employee or admin record. Users are never hard-deleted; they are
// deactivated through Active instead.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Active   bool   `json:"active"`
	// PasswordHash is an optional bcrypt hash. Users without one accept any
	// non-empty password.
	PasswordHash string `json:"passwordHash,omitempty"`
}

// Public returns a copy of u without credential material.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

// AuthSession is an issued session token together with the user snapshot taken at login.
type AuthSession struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// TokenClaims carries the identity extracted from a verified session token.
type TokenClaims struct {
	TokenID   string
	UserID    string
	Email     string
	Role      Role
	ExpiresAt time.Time
}
