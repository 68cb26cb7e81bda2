// Package accounts manages internal operator accounts and credential checks.
package accounts

import "time"

// Account is one internal operator. External Slack participants never get
// accounts; they exist only as sender metadata on messages.
type Account struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name,omitempty"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	passwordHash string
}

// Roles assignable to accounts.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// CreateAccountParams is the input for creating an account.
type CreateAccountParams struct {
	Username     string
	DisplayName  string
	Role         string
	PasswordHash string
}
