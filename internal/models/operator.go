package models

import (
	"time"

	"github.com/google/uuid"
)

// Operator is an authenticated internal user who manages subjects and issues
// share links. Stored in PostgreSQL (operators table).
type Operator struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string `json:"email"`
	PasswordHash string `json:"-"` // Don't return password hash in JSON

	// IsMaster bypasses every permission check.
	IsMaster   bool `json:"is_master"`
	IsDisabled bool `json:"is_disabled"`

	// TokenVersion is bumped to invalidate every previously issued
	// session token for this operator (force logout).
	TokenVersion int `json:"-"`

	// AllowedSections is the raw stored policy blob (JSON). Always run it
	// through services.NormalizePolicy before consulting it.
	AllowedSections string     `json:"-"`
	LastLogin       *time.Time `json:"last_login,omitempty"`
}
