package models

import (
	"time"

	"github.com/google/uuid"
)

// Note is an intel note attached to a subject (the "intel" tab).
type Note struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`

	Title          string `json:"title"`
	Body           string `json:"body"`
	Classification string `json:"classification,omitempty"` // e.g. "open", "confidential"
}
