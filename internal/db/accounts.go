package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"accounts/internal/models"
	"accounts/internal/store"
)

const accountColumns = `id, email, password_hash, first_name, last_name, about, profile_photo, address,
	is_admin, is_active, gender, date_of_birth, education_qualification, created_at, updated_at`

type AccountRepository struct {
	db *DB
}

var _ store.Accounts = (*AccountRepository)(nil)

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *models.Account) error {
	id, err := GenerateID(accountIDPrefix)
	if err != nil {
		return fmt.Errorf("generating account ID: %w", err)
	}
	address, err := encodeAddress(a.Address)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.Email, a.PasswordHash, a.FirstName, a.LastName, a.About,
		ptrToNullString(a.ProfilePhoto), address,
		a.IsAdmin, a.IsActive, string(a.Gender), a.DateOfBirth.UTC(), a.EducationQualification,
		now, now,
	)
	if err != nil {
		return writeError("creating account", err)
	}

	a.ID = id
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if !validID(accountIDPrefix, id) {
		return nil, store.ErrInvalidID
	}
	return scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return scanAccount(r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
}

func (r *AccountRepository) List(ctx context.Context, opts store.ListOptions) ([]*models.Account, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting accounts: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY created_at, id LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0, opts.Limit)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}

	return accounts, total, rows.Err()
}

func (r *AccountRepository) Update(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error) {
	if !validID(accountIDPrefix, id) {
		return nil, store.ErrInvalidID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting account update transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := scanAccount(tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	patch.Apply(a)
	a.UpdatedAt = time.Now().UTC()

	address, err := encodeAddress(a.Address)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE accounts
		    SET first_name = ?, last_name = ?, about = ?, profile_photo = ?, address = ?,
		        gender = ?, date_of_birth = ?, education_qualification = ?, updated_at = ?
		  WHERE id = ?`,
		a.FirstName, a.LastName, a.About, ptrToNullString(a.ProfilePhoto), address,
		string(a.Gender), a.DateOfBirth.UTC(), a.EducationQualification, a.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, writeError("updating account", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing account update: %w", err)
	}

	return a, nil
}

func (r *AccountRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	if !validID(accountIDPrefix, id) {
		return store.ErrInvalidID
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) (*models.Account, error) {
	return r.setFlag(ctx, id, "is_active", active)
}

func (r *AccountRepository) SetAdmin(ctx context.Context, id string, admin bool) (*models.Account, error) {
	return r.setFlag(ctx, id, "is_admin", admin)
}

// setFlag only ever receives one of the two column literals above.
func (r *AccountRepository) setFlag(ctx context.Context, id, column string, value bool) (*models.Account, error) {
	if !validID(accountIDPrefix, id) {
		return nil, store.ErrInvalidID
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		value, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", column, err)
	}
	if err := checkRowsAffected(result); err != nil {
		return nil, err
	}

	return r.FindByID(ctx, id)
}

func (r *AccountRepository) Delete(ctx context.Context, id string) (*models.Account, error) {
	if !validID(accountIDPrefix, id) {
		return nil, store.ErrInvalidID
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting account delete transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := scanAccount(tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}

	// password_resets rows go with the account (ON DELETE CASCADE).
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("deleting account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing account delete: %w", err)
	}

	return a, nil
}

func (r *AccountRepository) DeleteNonAdmins(ctx context.Context) (int64, []string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM accounts WHERE is_admin = 0 RETURNING profile_photo`)
	if err != nil {
		return 0, nil, fmt.Errorf("deleting non-admin accounts: %w", err)
	}
	defer rows.Close()

	var deleted int64
	var photos []string
	for rows.Next() {
		var photo sql.NullString
		if err := rows.Scan(&photo); err != nil {
			return deleted, photos, fmt.Errorf("scanning deleted account: %w", err)
		}
		deleted++
		if photo.Valid && photo.String != "" {
			photos = append(photos, photo.String)
		}
	}
	if err := rows.Err(); err != nil {
		return deleted, photos, fmt.Errorf("deleting non-admin accounts: %w", err)
	}
	return deleted, photos, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		a            models.Account
		gender       string
		profilePhoto sql.NullString
		address      sql.NullString
	)

	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.PasswordHash,
		&a.FirstName,
		&a.LastName,
		&a.About,
		&profilePhoto,
		&address,
		&a.IsAdmin,
		&a.IsActive,
		&gender,
		&a.DateOfBirth,
		&a.EducationQualification,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}

	a.Gender = models.Gender(gender)
	a.ProfilePhoto = nullStringToPtr(profilePhoto)
	if a.Address, err = decodeAddress(address); err != nil {
		return nil, err
	}

	return &a, nil
}
