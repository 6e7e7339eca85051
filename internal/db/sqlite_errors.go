package db

import (
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"accounts/internal/store"
)

func IsUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	if sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// writeError maps a failed insert or update to the store errors.
func writeError(op string, err error) error {
	if IsUniqueConstraintError(err) {
		return store.ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}
