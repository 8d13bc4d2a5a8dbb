package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") || // postgres via lib/pq
		strings.Contains(msg, "Error 1062") || // mysql
		strings.Contains(msg, "UNIQUE constraint failed") // sqlite
}

// IsSerializationFailure reports whether err is a retryable isolation conflict:
// postgres serialization_failure/deadlock_detected, mysql deadlock, or a busy sqlite database.
func IsSerializationFailure(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	msg := err.Error()
	return strings.Contains(msg, "Error 1213") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}
