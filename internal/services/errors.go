package services

import (
	"errors"
	"strings"

	"softwarnews/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL SQLSTATE codes that mean "run the transaction again".
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// classifyDBError maps a storage error onto the application taxonomy.
// onDuplicate is returned (wrapping err) when a unique index rejected a write.
func classifyDBError(err error, onDuplicate func(error) *models.AppError) error {
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.AppError{Code: models.CodeNotFound, Message: "record not found", Err: err}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return onDuplicate(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return models.NewConflictError(err)
		case pgUniqueViolation:
			return onDuplicate(err)
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		return onDuplicate(err)
	}
	// SQLite reports writer contention as SQLITE_BUSY / SQLITE_LOCKED
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return models.NewConflictError(err)
	}

	return models.NewInternalError(err)
}

func duplicateAsConflict(err error) *models.AppError {
	return models.NewConflictError(err)
}

func duplicateAsConstraint(message string) func(error) *models.AppError {
	return func(err error) *models.AppError {
		return models.NewConstraintError(message, err)
	}
}

// errorCode returns the taxonomy code of err, or CodeInternal.
func errorCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeInternal
}
