package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/google/uuid"
)

// SubjectRequest carries the mutable subject fields for create/update.
type SubjectRequest struct {
	Name             string `json:"name"`
	Occupation       string `json:"occupation"`
	AvatarURL        string `json:"avatar_url"`
	ThreatLevel      int    `json:"threat_level"`
	DateOfBirth      string `json:"date_of_birth"`
	Nationality      string `json:"nationality"`
	Aliases          string `json:"aliases"`
	LastKnownAddress string `json:"last_known_address"`
	Biography        string `json:"biography"`
}

// CreateSubject creates a new dossier profile owned by the caller.
func CreateSubject(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapCreateSubjects) {
		http.Error(w, "You are not allowed to create subjects", http.StatusForbidden)
		return
	}

	var req SubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Subject name is required", http.StatusBadRequest)
		return
	}

	var subject models.Subject
	err := database.PostgresDB.QueryRow(`
		INSERT INTO subjects (owner_id, name, occupation, avatar_url, threat_level,
		                      date_of_birth, nationality, aliases, last_known_address, biography)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, op.ID, req.Name, req.Occupation, req.AvatarURL, req.ThreatLevel,
		req.DateOfBirth, req.Nationality, req.Aliases, req.LastKnownAddress, req.Biography,
	).Scan(&subject.ID, &subject.CreatedAt, &subject.UpdatedAt)
	if err != nil {
		http.Error(w, "Failed to create subject", http.StatusInternalServerError)
		return
	}

	subject.OwnerID = op.ID
	subject.Name = req.Name
	subject.Occupation = req.Occupation
	subject.AvatarURL = req.AvatarURL
	subject.ThreatLevel = req.ThreatLevel
	subject.DateOfBirth = req.DateOfBirth
	subject.Nationality = req.Nationality
	subject.Aliases = req.Aliases
	subject.LastKnownAddress = req.LastKnownAddress
	subject.Biography = req.Biography

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Subject created successfully",
		"subject": subject,
	})
}

// GetSubjects lists the caller's subjects.
func GetSubjects(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	rows, err := database.PostgresDB.Query(`
		SELECT id, owner_id, created_at, updated_at, name, COALESCE(occupation, ''),
		       COALESCE(avatar_url, ''), threat_level, COALESCE(date_of_birth, ''),
		       COALESCE(nationality, ''), COALESCE(aliases, ''),
		       COALESCE(last_known_address, ''), COALESCE(biography, '')
		FROM subjects WHERE owner_id = $1 ORDER BY created_at DESC
	`, op.ID)
	if err != nil {
		http.Error(w, "Failed to fetch subjects", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	subjects := make([]models.Subject, 0)
	for rows.Next() {
		var s models.Subject
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt, &s.Name,
			&s.Occupation, &s.AvatarURL, &s.ThreatLevel, &s.DateOfBirth,
			&s.Nationality, &s.Aliases, &s.LastKnownAddress, &s.Biography); err != nil {
			http.Error(w, "Failed to decode subjects", http.StatusInternalServerError)
			return
		}
		subjects = append(subjects, s)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"subjects": subjects,
		"count":    len(subjects),
	})
}

// GetSubjectByID returns one subject the caller owns, by ?id= query param.
func GetSubjectByID(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	subjectID := r.URL.Query().Get("id")
	if subjectID == "" {
		http.Error(w, "Subject ID is required", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(subjectID)
	if err != nil {
		http.Error(w, "Invalid subject ID", http.StatusBadRequest)
		return
	}

	var s models.Subject
	err = database.PostgresDB.QueryRow(`
		SELECT id, owner_id, created_at, updated_at, name, COALESCE(occupation, ''),
		       COALESCE(avatar_url, ''), threat_level, COALESCE(date_of_birth, ''),
		       COALESCE(nationality, ''), COALESCE(aliases, ''),
		       COALESCE(last_known_address, ''), COALESCE(biography, '')
		FROM subjects WHERE id = $1 AND owner_id = $2
	`, id, op.ID).Scan(&s.ID, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt, &s.Name,
		&s.Occupation, &s.AvatarURL, &s.ThreatLevel, &s.DateOfBirth,
		&s.Nationality, &s.Aliases, &s.LastKnownAddress, &s.Biography)
	if err != nil {
		if err == sql.ErrNoRows {
			http.Error(w, "Subject not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch subject", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"subject": s,
	})
}

// UpdateSubject updates a subject the caller owns. Ownership guard and
// mutation run as a single statement to avoid check-then-write gaps.
func UpdateSubject(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapEditSubjects) {
		http.Error(w, "You are not allowed to edit subjects", http.StatusForbidden)
		return
	}

	subjectID := r.URL.Query().Get("id")
	if subjectID == "" {
		http.Error(w, "Subject ID is required", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(subjectID)
	if err != nil {
		http.Error(w, "Invalid subject ID", http.StatusBadRequest)
		return
	}

	var req SubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Subject name is required", http.StatusBadRequest)
		return
	}

	res, err := database.PostgresDB.Exec(`
		UPDATE subjects
		SET name = $1, occupation = $2, avatar_url = $3, threat_level = $4,
		    date_of_birth = $5, nationality = $6, aliases = $7,
		    last_known_address = $8, biography = $9, updated_at = NOW()
		WHERE id = $10 AND owner_id = $11
	`, req.Name, req.Occupation, req.AvatarURL, req.ThreatLevel,
		req.DateOfBirth, req.Nationality, req.Aliases, req.LastKnownAddress,
		req.Biography, id, op.ID)
	if err != nil {
		http.Error(w, "Failed to update subject", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		http.Error(w, "Subject not found", http.StatusNotFound)
		return
	}

	services.InvalidateSubjectPayload(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Subject updated successfully",
	})
}

// DeleteSubject deletes a subject the caller owns, cascading to notes,
// events, locations, relationships, files, and share links.
func DeleteSubject(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapDeleteSubjects) {
		http.Error(w, "You are not allowed to delete subjects", http.StatusForbidden)
		return
	}

	subjectID := r.URL.Query().Get("id")
	if subjectID == "" {
		http.Error(w, "Subject ID is required", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(subjectID)
	if err != nil {
		http.Error(w, "Invalid subject ID", http.StatusBadRequest)
		return
	}

	res, err := database.PostgresDB.Exec(`
		DELETE FROM subjects WHERE id = $1 AND owner_id = $2
	`, id, op.ID)
	if err != nil {
		http.Error(w, "Failed to delete subject", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		http.Error(w, "Subject not found", http.StatusNotFound)
		return
	}

	services.InvalidateSubjectPayload(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Subject deleted successfully",
	})
}
