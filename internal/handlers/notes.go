package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/google/uuid"
)

// CreateNote attaches an intel note to a subject the caller owns.
func CreateNote(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageIntel) {
		http.Error(w, "You are not allowed to manage intel", http.StatusForbidden)
		return
	}

	subjectID, ok := requireOwnedSubject(w, r, op)
	if !ok {
		return
	}

	var req struct {
		Title          string `json:"title"`
		Body           string `json:"body"`
		Classification string `json:"classification"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Body == "" {
		http.Error(w, "Title and body are required", http.StatusBadRequest)
		return
	}

	note := models.Note{
		SubjectID:      subjectID,
		Title:          req.Title,
		Body:           req.Body,
		Classification: req.Classification,
	}
	err := database.PostgresDB.QueryRow(`
		INSERT INTO subject_notes (subject_id, title, body, classification)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at
	`, subjectID, req.Title, req.Body, req.Classification).Scan(&note.ID, &note.CreatedAt)
	if err != nil {
		http.Error(w, "Failed to create note", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Note created successfully",
		"note":    note,
	})
}

// GetNotes lists the intel notes of a subject the caller owns.
func GetNotes(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	subjectID, ok := requireOwnedSubject(w, r, op)
	if !ok {
		return
	}

	rows, err := database.PostgresDB.Query(`
		SELECT id, subject_id, created_at, title, body, COALESCE(classification, '')
		FROM subject_notes WHERE subject_id = $1 ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		http.Error(w, "Failed to fetch notes", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.SubjectID, &n.CreatedAt, &n.Title, &n.Body, &n.Classification); err != nil {
			http.Error(w, "Failed to decode notes", http.StatusInternalServerError)
			return
		}
		notes = append(notes, n)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"notes":   notes,
		"count":   len(notes),
	})
}

// DeleteNote removes a note. The ownership guard rides in the statement
// itself through the subjects join.
func DeleteNote(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageIntel) {
		http.Error(w, "You are not allowed to manage intel", http.StatusForbidden)
		return
	}

	noteID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid note ID", http.StatusBadRequest)
		return
	}

	var subjectID uuid.UUID
	err = database.PostgresDB.QueryRow(`
		DELETE FROM subject_notes
		WHERE id = $1 AND subject_id IN (SELECT id FROM subjects WHERE owner_id = $2)
		RETURNING subject_id
	`, noteID, op.ID).Scan(&subjectID)
	if err != nil {
		if isNoRows(err) {
			http.Error(w, "Note not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete note", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Note deleted successfully",
	})
}
