package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicate is returned when a write hits a unique constraint.
	ErrDuplicate = errors.New("duplicate row")
	// ErrStaleVersion is returned when a conditional match update finds a newer version.
	ErrStaleVersion = errors.New("stale match version")
	// ErrNoRowsAffected is returned when a guarded update or delete matched nothing.
	ErrNoRowsAffected = errors.New("no rows affected")
)

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func checkAffectedRows(result sql.Result, noRowsErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return noRowsErr
	}
	return nil
}
