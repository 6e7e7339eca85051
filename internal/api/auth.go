package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"accounts/internal/auth"
	"accounts/internal/constants"
	"accounts/internal/models"
	"accounts/internal/schema"
	"accounts/internal/store"
)

const invalidCredentialsMessage = "Invalid email or password"

type AuthHandler struct {
	accounts store.Accounts
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenService
	resets   *auth.ResetService
	photos   *PhotoUploader
}

func NewAuthHandler(
	accounts store.Accounts,
	hasher *auth.PasswordHasher,
	tokens *auth.TokenService,
	resets *auth.ResetService,
	photos *PhotoUploader,
) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		resets:   resets,
		photos:   photos,
	}
}

type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *models.Account `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req schema.RegisterRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	photo, err := profilePhotoHeader(r)
	if !writeInputError(w, err) {
		return
	}
	if !validateRequest(w, &req) {
		return
	}

	newAccount := req.NewAccount()
	passwordHash, err := h.hasher.Hash(newAccount.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		passwordTooLong(w)
		return
	}
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	account := newAccount.Account(passwordHash)
	photoKey := ""
	if photo != nil {
		photoURL, key, err := h.photos.Save(r.Context(), photo)
		if !handleBlobSaveError(w, err) {
			return
		}
		account.ProfilePhoto = &photoURL
		photoKey = key
	}

	if err := h.accounts.Create(r.Context(), account); err != nil {
		h.photos.DeleteKey(r.Context(), photoKey)
		if errors.Is(err, store.ErrDuplicate) {
			conflict(w, "An account with this email already exists")
			return
		}
		slog.Error("error creating account", "error", err)
		internalError(w)
		return
	}

	h.writeSession(w, http.StatusCreated, "User registered successfully", account)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req schema.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accounts.FindByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		h.hasher.VerifyDummy(req.Password)
		unauthorized(w, constants.ErrCodeInvalidCredentials, invalidCredentialsMessage)
		return
	}
	if err != nil {
		slog.Error("error finding account by email", "error", err)
		internalError(w)
		return
	}

	if !h.hasher.Verify(req.Password, account.PasswordHash) || !account.IsActive {
		unauthorized(w, constants.ErrCodeInvalidCredentials, invalidCredentialsMessage)
		return
	}

	h.writeSession(w, http.StatusOK, "Login successful", account)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, message string, account *models.Account) {
	token, expiresAt, err := h.tokens.Issue(account.ID, account.IsAdmin)
	if err != nil {
		slog.Error("error issuing token", "error", err, "user_id", account.ID)
		internalError(w)
		return
	}

	writeSuccess(w, status, message, AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		User:      account,
	})
}

const resetRequestedMessage = "If an account exists for that email, a password reset link has been sent"

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req schema.PasswordResetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	account, err := h.accounts.FindByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		writeSuccess(w, http.StatusOK, resetRequestedMessage, nil)
		return
	}
	if err != nil {
		slog.Error("error finding account by email", "error", err)
		internalError(w)
		return
	}
	if !account.IsActive {
		writeSuccess(w, http.StatusOK, resetRequestedMessage, nil)
		return
	}

	if _, err := h.resets.Request(r.Context(), account); err != nil {
		if errors.Is(err, auth.ErrResetDelivery) {
			writeError(w, http.StatusInternalServerError, constants.ErrCodeInternal, "Password reset email could not be sent")
			return
		}
		slog.Error("error creating password reset", "error", err, "user_id", account.ID)
		internalError(w)
		return
	}

	writeSuccess(w, http.StatusOK, resetRequestedMessage, nil)
}

// ResetPassword consumes a reset token. The record is deleted only after
// the new password is stored, so a failed update leaves the token usable.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req schema.ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	record, err := h.resets.Lookup(r.Context(), chi.URLParam(r, "token"))
	if errors.Is(err, auth.ErrResetInvalid) {
		resetInvalid(w)
		return
	}
	if err != nil {
		slog.Error("error looking up reset token", "error", err)
		internalError(w)
		return
	}

	passwordHash, err := h.hasher.Hash(req.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		passwordTooLong(w)
		return
	}
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	if err := h.accounts.SetPassword(r.Context(), record.AccountID, passwordHash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if err := h.resets.Complete(r.Context(), record); err != nil {
				slog.Error("error deleting orphaned reset token", "error", err)
			}
			resetInvalid(w)
			return
		}
		slog.Error("error updating password", "error", err, "user_id", record.AccountID)
		internalError(w)
		return
	}

	if err := h.resets.Complete(r.Context(), record); err != nil {
		slog.Error("error consuming reset token", "error", err, "user_id", record.AccountID)
	}

	writeSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

func resetInvalid(w http.ResponseWriter) {
	writeError(w, http.StatusBadRequest, constants.ErrCodeResetInvalid, "Invalid or expired reset token")
}

func passwordTooLong(w http.ResponseWriter) {
	validationFailed(w, &schema.ValidationError{Fields: []schema.FieldError{{
		Field:   "password",
		Rule:    "max_bytes",
		Message: "password must be at most 72 bytes",
	}}})
}
