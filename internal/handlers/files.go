package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/google/uuid"
)

const maxUploadBytes = 10 << 20 // 10 MB

// fileKind buckets a content type into the coarse kinds the files tab shows.
func fileKind(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "document"
	}
}

// UploadFile accepts a multipart upload, pushes the bytes to Cloudinary, and
// records the resulting URL against the subject.
func UploadFile(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageFiles) {
		http.Error(w, "You are not allowed to manage files", http.StatusForbidden)
		return
	}
	if services.Cloudinary == nil {
		http.Error(w, "File uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	subjectID, ok := requireOwnedSubject(w, r, op)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	upload, fileHeader, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "A file field is required", http.StatusBadRequest)
		return
	}
	defer upload.Close()
	if fileHeader.Size > maxUploadBytes {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		return
	}

	url, err := services.Cloudinary.UploadFile(r.Context(), upload, "casefile/"+subjectID.String())
	if err != nil {
		http.Error(w, "Failed to upload file", http.StatusInternalServerError)
		return
	}

	file := models.File{
		SubjectID: subjectID,
		FileName:  fileHeader.Filename,
		URL:       url,
		Kind:      fileKind(fileHeader.Header.Get("Content-Type")),
	}
	err = database.PostgresDB.QueryRow(`
		INSERT INTO subject_files (subject_id, file_name, url, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, subjectID, file.FileName, file.URL, file.Kind).Scan(&file.ID, &file.CreatedAt)
	if err != nil {
		http.Error(w, "Failed to record file", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "File uploaded successfully",
		"file":    file,
	})
}

// GetFiles lists a subject's attachments.
func GetFiles(w http.ResponseWriter, r *http.Request) {
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
		SELECT id, subject_id, created_at, file_name, url, COALESCE(kind, '')
		FROM subject_files WHERE subject_id = $1 ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		http.Error(w, "Failed to fetch files", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	files := make([]models.File, 0)
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.SubjectID, &f.CreatedAt, &f.FileName, &f.URL, &f.Kind); err != nil {
			http.Error(w, "Failed to decode files", http.StatusInternalServerError)
			return
		}
		files = append(files, f)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"files":   files,
		"count":   len(files),
	})
}

// DeleteFile removes an attachment row. Bytes stay in Cloudinary.
func DeleteFile(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageFiles) {
		http.Error(w, "You are not allowed to manage files", http.StatusForbidden)
		return
	}

	fileID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid file ID", http.StatusBadRequest)
		return
	}

	var subjectID uuid.UUID
	err = database.PostgresDB.QueryRow(`
		DELETE FROM subject_files
		WHERE id = $1 AND subject_id IN (SELECT id FROM subjects WHERE owner_id = $2)
		RETURNING subject_id
	`, fileID, op.ID).Scan(&subjectID)
	if err != nil {
		if isNoRows(err) {
			http.Error(w, "File not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete file", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "File deleted successfully",
	})
}
