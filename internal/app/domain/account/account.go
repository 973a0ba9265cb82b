// Package account defines the identity records managed by the storefront.
package account

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Role grants a fixed set of capabilities to an account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEditor   Role = "editor"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleCustomer:
		return true
	}
	return false
}

// Account is an identity record. The password hash and reset-token fields are
// excluded from every serialized view.
type Account struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	Phone             string     `json:"phone,omitempty"`
	PasswordHash      string     `json:"-"`
	Role              Role       `json:"role"`
	Active            bool       `json:"active"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	FailedLogins      int        `json:"-"`
	LockedUntil       *time.Time `json:"-"`
	ResetTokenHash    string     `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Locked reports whether the account is inside its lockout window at now.
func (a Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
)

// NormalizeEmail case-folds and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateUsername checks the 3-30 character handle constraint.
func ValidateUsername(username string) error {
	if l := len(strings.TrimSpace(username)); l < 3 || l > 30 {
		return fmt.Errorf("username must be between 3 and 30 characters")
	}
	return nil
}

// ValidateEmail checks basic address shape on a normalized email.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePhone checks the optional 10-15 digit phone constraint.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		return fmt.Errorf("phone must be 10 to 15 digits")
	}
	return nil
}
