package services

import (
	"database/sql"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/google/uuid"
)

const operatorColumns = `id, created_at, updated_at, email, password_hash, is_master, is_disabled, token_version, COALESCE(allowed_sections, ''), last_login`

func scanOperator(row *sql.Row) (*models.Operator, error) {
	var op models.Operator
	err := row.Scan(
		&op.ID, &op.CreatedAt, &op.UpdatedAt, &op.Email, &op.PasswordHash,
		&op.IsMaster, &op.IsDisabled, &op.TokenVersion, &op.AllowedSections,
		&op.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// GetOperatorByID fetches a live operator row. Returns sql.ErrNoRows when the
// operator does not exist.
func GetOperatorByID(id uuid.UUID) (*models.Operator, error) {
	row := database.PostgresDB.QueryRow(
		`SELECT `+operatorColumns+` FROM operators WHERE id = $1`, id)
	return scanOperator(row)
}

// GetOperatorByEmail fetches an operator by unique email.
func GetOperatorByEmail(email string) (*models.Operator, error) {
	row := database.PostgresDB.QueryRow(
		`SELECT `+operatorColumns+` FROM operators WHERE email = $1`, email)
	return scanOperator(row)
}

// CountOperators returns the total number of operator rows. Used for the
// bootstrap path: the very first sign-in against an empty table creates a
// master operator.
func CountOperators() (int, error) {
	var count int
	err := database.PostgresDB.QueryRow(`SELECT COUNT(*) FROM operators`).Scan(&count)
	return count, err
}

// BumpTokenVersion invalidates every previously issued token for the
// operator. Returns true when the operator existed.
func BumpTokenVersion(id uuid.UUID) (bool, error) {
	res, err := database.PostgresDB.Exec(
		`UPDATE operators SET token_version = token_version + 1, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
