package models

import (
	"time"

	"github.com/google/uuid"
)

// File is a media attachment for a subject (the "files" tab). Bytes live in
// Cloudinary; only the URL is stored here.
type File struct {
	ID        uuid.UUID `json:"id"`
	SubjectID uuid.UUID `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`

	FileName string `json:"file_name"`
	URL      string `json:"url"`
	Kind     string `json:"kind,omitempty"` // e.g. "image", "document"
}
