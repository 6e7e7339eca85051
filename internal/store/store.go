// Package store defines the persistence contracts shared by the SQLite and
// MongoDB backends.
package store

import (
	"context"
	"errors"
	"time"

	"accounts/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
	ErrInvalidID = errors.New("invalid id")
)

type ListOptions struct {
	Offset int64
	Limit  int64
}

// Accounts is the account directory. Emails are stored already normalised.
type Accounts interface {
	// Create persists a and fills in its ID. ErrDuplicate on email reuse.
	Create(ctx context.Context, a *models.Account) error
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context, opts ListOptions) ([]*models.Account, int64, error)
	Update(ctx context.Context, id string, patch models.AccountPatch) (*models.Account, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetActive(ctx context.Context, id string, active bool) (*models.Account, error)
	SetAdmin(ctx context.Context, id string, admin bool) (*models.Account, error)
	// Delete removes the account and returns it as it was.
	Delete(ctx context.Context, id string) (*models.Account, error)
	// DeleteNonAdmins removes every account whose admin flag is not set and
	// returns how many went, plus the profile photo URLs they held.
	DeleteNonAdmins(ctx context.Context) (int64, []string, error)
}

// ResetTokens holds password reset records. Lookups never return an expired
// record.
type ResetTokens interface {
	// Replace deletes any record for accountID and stores a new one.
	Replace(ctx context.Context, accountID, tokenHash string, expiresAt time.Time) (*models.PasswordReset, error)
	FindValid(ctx context.Context, tokenHash string) (*models.PasswordReset, error)
	Delete(ctx context.Context, id string) error
	DeleteForAccount(ctx context.Context, accountID string) error
}

// Store is one configured backend.
type Store interface {
	Accounts() Accounts
	ResetTokens() ResetTokens
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
