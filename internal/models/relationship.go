package models

import (
	"time"

	"github.com/google/uuid"
)

// Relationship links a subject to an associate (the "network" tab).
type Relationship struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`

	RelatedName string     `json:"related_name"`
	Relation    string     `json:"relation"` // e.g. "associate", "family", "employer"
	RelatedSubjectID *uuid.UUID `json:"related_subject_id,omitempty"`
}
