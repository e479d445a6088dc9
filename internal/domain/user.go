package domain

import "time"

// Role is one of the fixed set of named permission levels a user can hold.
type Role string

// Canonical roles in declaration order.
const (
	RoleAnonymous     Role = "ANONYMOUS"
	RoleAuthenticated Role = "AUTHENTICATED"
	RoleManager       Role = "MANAGER"
	RoleAdmin         Role = "ADMIN"
)

// Roles returns every role in declaration order. The set is closed; the
// returned slice is a fresh copy on every call.
func Roles() []Role {
	return []Role{RoleAnonymous, RoleAuthenticated, RoleManager, RoleAdmin}
}

// IsValid checks if the role is a member of the canonical set.
func (r Role) IsValid() bool {
	switch r {
	case RoleAnonymous, RoleAuthenticated, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// roleRank orders roles for the transport-level access gate. Business rules
// never use this ordering; they compare roles for equality only.
var roleRank = map[Role]int{
	RoleAnonymous:     0,
	RoleAuthenticated: 1,
	RoleManager:       2,
	RoleAdmin:         3,
}

// AtLeast reports whether the role ranks at or above min.
func (r Role) AtLeast(min Role) bool {
	return roleRank[r] >= roleRank[min]
}

// User is an account referenced by the role authority. The authority reads
// and conditionally mutates Role; account lifecycle belongs to identity.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshToken is a persisted, rotating session credential.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
