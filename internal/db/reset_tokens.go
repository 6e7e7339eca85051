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

type ResetTokenRepository struct {
	db *DB
}

var _ store.ResetTokens = (*ResetTokenRepository)(nil)

func NewResetTokenRepository(db *DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

func (r *ResetTokenRepository) Replace(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error) {
	id, err := GenerateID(resetIDPrefix)
	if err != nil {
		return nil, fmt.Errorf("generating reset token ID: %w", err)
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting reset token transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE account_id = ?`, accountID); err != nil {
		return nil, fmt.Errorf("deleting previous reset token: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO password_resets (id, account_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, accountID, tokenHash, expiresAt.UTC(), now,
	)
	if err != nil {
		return nil, writeError("creating reset token", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing reset token: %w", err)
	}

	return &models.PasswordReset{
		ID:        id,
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
	}, nil
}

func (r *ResetTokenRepository) FindValid(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	var t models.PasswordReset

	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, token_hash, expires_at, created_at
		   FROM password_resets
		  WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, time.Now().UTC(),
	).Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying reset token: %w", err)
	}

	return &t, nil
}

func (r *ResetTokenRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting reset token: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *ResetTokenRepository) DeleteForAccount(ctx context.Context, accountID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("deleting account reset tokens: %w", err)
	}
	return nil
}

func (r *ResetTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_resets WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting expired reset tokens: %w", err)
	}

	return result.RowsAffected()
}
