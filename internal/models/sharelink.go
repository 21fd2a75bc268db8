package models

import (
	"time"

	"github.com/google/uuid"
)

// ShareLink is a capability token granting time-boxed, optionally filtered,
// optionally location-gated read access to one subject for unauthenticated
// viewers. The countdown starts on first successful access, not at creation.
type ShareLink struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SubjectID uuid.UUID `json:"subject_id"`

	// Token is the opaque unguessable handle viewers present.
	Token string `json:"token"`

	// DurationSeconds is fixed at creation and never mutated.
	DurationSeconds int `json:"duration_seconds"`

	// StartedAt is set exactly once, on first successful access.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// IsActive stays true until the link is revoked or discovered expired.
	// Once false it never flips back.
	IsActive bool `json:"is_active"`

	// Views only increases. Informational, not security-relevant.
	Views int `json:"views"`

	// RequireLocation gates full disclosure behind viewer coordinates.
	RequireLocation bool `json:"require_location"`

	// AllowedTabs is a JSON array of disclosure categories; empty means all.
	AllowedTabs string `json:"-"`
}
