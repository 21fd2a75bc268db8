package models

import (
	"time"

	"github.com/google/uuid"
)

// Subject is a dossier profile owned by a single operator.
type Subject struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Header identity fields: always disclosed on a share link,
	// regardless of tab filtering.
	Name        string `json:"name"`
	Occupation  string `json:"occupation,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	ThreatLevel int    `json:"threat_level"`

	// Profile tab attributes
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	Aliases     string `json:"aliases,omitempty"`
	LastKnownAddress string `json:"last_known_address,omitempty"`
	Biography   string `json:"biography,omitempty"`
}
