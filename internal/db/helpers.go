package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"accounts/internal/models"
	"accounts/internal/store"
)

// checkRowsAffected verifies at least one row was affected, returns ErrNotFound if not
func checkRowsAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func ptrToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Addresses are kept as a JSON column; all parts are optional and never
// queried individually.
func encodeAddress(a *models.Address) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding address: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeAddress(ns sql.NullString) (*models.Address, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var a models.Address
	if err := json.Unmarshal([]byte(ns.String), &a); err != nil {
		return nil, fmt.Errorf("decoding address: %w", err)
	}
	return &a, nil
}
