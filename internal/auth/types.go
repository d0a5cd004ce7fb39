package auth

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// emailPattern is deliberately loose: something@something.tld, no spaces.
var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 6

// NormalizeEmail trims and lower-cases an email so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsValidEmail reports whether an already-normalised email is acceptable.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleUser is a standard account. It sees and edits only tasks it owns
	// or is assigned to.
	RoleUser Role = "user"

	// RoleAdmin manages identities, reassigns tasks and sees everything.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a user account can hold.
var ValidRoles = []Role{RoleUser, RoleAdmin}

// IsValidRole returns true if r names a known role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents an authenticated account and its profile.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // never serialised
	Role           Role      `json:"role"`
	Name           string    `json:"name"`
	WorkArea       string    `json:"work_area,omitempty"`
	Description    string    `json:"description,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsAdmin is shorthand for a role check against RoleAdmin.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Profile holds the self-editable fields of a User. A nil field is left
// unchanged.
type Profile struct {
	Name           *string
	WorkArea       *string
	Description    *string
	ProfilePicture *string
}

// Sentinel errors for auth operations.
var (
	// ErrUnauthenticated covers every reason a bearer credential is rejected:
	// missing, malformed, bad signature, expired, or the user no longer exists.
	ErrUnauthenticated = errors.New("not authenticated")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidRole        = errors.New("invalid role")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrSelfDeletion       = errors.New("cannot delete your own account")
)
