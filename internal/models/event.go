package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a timeline entry for a subject (the "history" tab).
type Event struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`

	OccurredAt  time.Time `json:"occurred_at"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
}
