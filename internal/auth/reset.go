package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"accounts/internal/constants"
	"accounts/internal/models"
	"accounts/internal/store"
)

var (
	// ErrResetInvalid covers both unknown and expired reset tokens.
	ErrResetInvalid  = errors.New("invalid or expired reset token")
	ErrResetDelivery = errors.New("password reset email could not be delivered")
)

// ResetMailer delivers the reset link to the account owner.
type ResetMailer interface {
	SendPasswordReset(to, name, link string, ttl time.Duration) error
}

type ResetService struct {
	tokens  store.ResetTokens
	mailer  ResetMailer
	ttl     time.Duration
	linkFor func(token string) string
	now     func() time.Time
}

func NewResetService(tokens store.ResetTokens, mailer ResetMailer, ttl time.Duration, resetURL string) *ResetService {
	return &ResetService{
		tokens: tokens,
		mailer: mailer,
		ttl:    ttl,
		linkFor: func(token string) string {
			return resetURL + token
		},
		now: time.Now,
	}
}

// Request replaces any live reset record for account with a fresh one and
// mails the link. It returns the plaintext token.
func (s *ResetService) Request(ctx context.Context, account *models.Account) (string, error) {
	token, err := GenerateOpaqueToken(constants.ResetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating reset token: %w", err)
	}

	expiresAt := s.now().Add(s.ttl)
	if _, err := s.tokens.Replace(ctx, account.ID, HashResetToken(token), expiresAt); err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}

	name := account.FirstName
	if name == "" {
		name = "User"
	}
	if err := s.mailer.SendPasswordReset(account.Email, name, s.linkFor(token), s.ttl); err != nil {
		slog.Error("error sending password reset email", "component", "email", "error", err, "user_id", account.ID)
		return "", fmt.Errorf("%w: %v", ErrResetDelivery, err)
	}

	return token, nil
}

// Lookup resolves a plaintext token to its live record.
func (s *ResetService) Lookup(ctx context.Context, token string) (*models.PasswordReset, error) {
	if token == "" {
		return nil, ErrResetInvalid
	}

	record, err := s.tokens.FindValid(ctx, HashResetToken(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrResetInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("finding reset token: %w", err)
	}
	if record.Expired(s.now()) {
		return nil, ErrResetInvalid
	}

	return record, nil
}

// Complete consumes record. Call only after the password change is stored.
func (s *ResetService) Complete(ctx context.Context, record *models.PasswordReset) error {
	err := s.tokens.Delete(ctx, record.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting reset token: %w", err)
	}
	return nil
}

func HashResetToken(token string) string {
	return hashToken(token)
}

func GenerateOpaqueToken(length int) (string, error) {
	return generateSecureToken(length)
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
