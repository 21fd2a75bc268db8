package models

import (
	"time"

	"github.com/google/uuid"
)

// Location source values. Viewer sightings are recorded when a location-gated
// share link is unlocked with coordinates.
const (
	LocationSourceOperator    = "operator"
	LocationSourceShareViewer = "share_viewer"
)

// Location is a sighting recorded against a subject (the "map" tab).
type Location struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`

	// Source is "operator" for manual entries, "share_viewer" when the
	// coordinates were disclosed by a viewer unlocking a share link.
	Source     string `json:"source"`
	ShareToken string `json:"-"` // set only for viewer sightings
}
