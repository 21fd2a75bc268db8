package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/google/uuid"
)

// CreateRelationship links an associate to a subject the caller owns.
func CreateRelationship(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageRelationships) {
		http.Error(w, "You are not allowed to manage relationships", http.StatusForbidden)
		return
	}

	subjectID, ok := requireOwnedSubject(w, r, op)
	if !ok {
		return
	}

	var req struct {
		RelatedName      string `json:"related_name"`
		Relation         string `json:"relation"`
		RelatedSubjectID string `json:"related_subject_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RelatedName == "" || req.Relation == "" {
		http.Error(w, "Related name and relation are required", http.StatusBadRequest)
		return
	}

	var relatedID *uuid.UUID
	if req.RelatedSubjectID != "" {
		parsed, err := uuid.Parse(req.RelatedSubjectID)
		if err != nil {
			http.Error(w, "Invalid related subject ID", http.StatusBadRequest)
			return
		}
		owns, err := services.OperatorOwnsSubject(op.ID, parsed)
		if err != nil {
			http.Error(w, "Failed to verify related subject", http.StatusInternalServerError)
			return
		}
		if !owns {
			http.Error(w, "Related subject not found", http.StatusNotFound)
			return
		}
		relatedID = &parsed
	}

	rel := models.Relationship{
		SubjectID:        subjectID,
		RelatedName:      req.RelatedName,
		Relation:         req.Relation,
		RelatedSubjectID: relatedID,
	}
	err := database.PostgresDB.QueryRow(`
		INSERT INTO subject_relationships (subject_id, related_name, relation, related_subject_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, subjectID, req.RelatedName, req.Relation, relatedID).Scan(&rel.ID, &rel.CreatedAt)
	if err != nil {
		http.Error(w, "Failed to create relationship", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"message":      "Relationship created successfully",
		"relationship": rel,
	})
}

// GetRelationships lists a subject's network.
func GetRelationships(w http.ResponseWriter, r *http.Request) {
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
		SELECT id, subject_id, created_at, related_name, relation, related_subject_id
		FROM subject_relationships WHERE subject_id = $1 ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		http.Error(w, "Failed to fetch relationships", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	relationships := make([]models.Relationship, 0)
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(&rel.ID, &rel.SubjectID, &rel.CreatedAt, &rel.RelatedName, &rel.Relation, &rel.RelatedSubjectID); err != nil {
			http.Error(w, "Failed to decode relationships", http.StatusInternalServerError)
			return
		}
		relationships = append(relationships, rel)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"relationships": relationships,
		"count":         len(relationships),
	})
}

// DeleteRelationship removes a network entry belonging to the caller.
func DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageRelationships) {
		http.Error(w, "You are not allowed to manage relationships", http.StatusForbidden)
		return
	}

	relationshipID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid relationship ID", http.StatusBadRequest)
		return
	}

	var subjectID uuid.UUID
	err = database.PostgresDB.QueryRow(`
		DELETE FROM subject_relationships
		WHERE id = $1 AND subject_id IN (SELECT id FROM subjects WHERE owner_id = $2)
		RETURNING subject_id
	`, relationshipID, op.ID).Scan(&subjectID)
	if err != nil {
		if isNoRows(err) {
			http.Error(w, "Relationship not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete relationship", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Relationship deleted successfully",
	})
}
