package user

import (
	"time"

	"github.com/google/uuid"
)

// Role gates access to the admin surface
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is a marketplace customer. Account management lives elsewhere; the
// payments service only reads users to validate deposit requests and to scope
// wallet lookups.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the user may call admin endpoints.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
