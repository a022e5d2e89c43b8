package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole string

const (
	// RoleUser is the default role, limited to the user's own record
	RoleUser UserRole = "user"
	// RoleAdmin manages every user
	RoleAdmin UserRole = "admin"
)

// ValidRoles returns the roles a user can be assigned
func ValidRoles() []UserRole {
	return []UserRole{RoleUser, RoleAdmin}
}

// IsValid checks if the role is one of the predefined roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into a UserRole
func ParseRole(s string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(s)))
	return role, role.IsValid()
}

// User is the user model
type User struct {
	bun.BaseModel       `bun:"table:users,alias:usr"`
	ID                  uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Email               string    `bun:"email,notnull,unique" json:"email"`
	FirstName           string    `bun:"first_name" json:"first_name"`
	LastName            string    `bun:"last_name" json:"last_name"`
	Role                UserRole  `bun:"user_role,notnull" json:"role"`
	PasswordHash        string    `bun:"password_hash" json:"-"`
	AuthenticationToken string    `bun:"authentication_token,unique" json:"-"`
	CreatedAt           time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt           time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// FullName joins first and last name
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizeEmail lowercases and trims an email address, which is the
// comparison key for users.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserView is the public representation of a user. Secrets never make it
// into a view.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserView builds the public view of a user
func NewUserView(u *User) UserView {
	if u == nil {
		return UserView{}
	}
	return UserView{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUserViews maps a list of users
func NewUserViews(records []*User) []UserView {
	out := make([]UserView, 0, len(records))
	for _, u := range records {
		out = append(out, NewUserView(u))
	}
	return out
}

// FullName joins first and last name
func (v UserView) FullName() string {
	return strings.TrimSpace(v.FirstName + " " + v.LastName)
}

// IsAdmin reports whether the viewed user is an admin
func (v UserView) IsAdmin() bool {
	return v.Role == string(RoleAdmin)
}
