package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"accounts/internal/auth"
	"accounts/internal/constants"
	"accounts/internal/models"
	"accounts/internal/schema"
	"accounts/internal/store"
)

type UserHandler struct {
	accounts store.Accounts
	resets   store.ResetTokens
	photos   *PhotoUploader
}

func NewUserHandler(accounts store.Accounts, resets store.ResetTokens, photos *PhotoUploader) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		resets:   resets,
		photos:   photos,
	}
}

// GET /api/user
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	principal := GetPrincipal(r)
	if principal == nil {
		unauthorized(w, constants.ErrCodeAuthFailed, "Authentication required")
		return
	}

	account, err := h.accounts.FindByID(r.Context(), principal.AccountID)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error finding account", "error", err, "user_id", principal.AccountID)
		internalError(w)
		return
	}

	writeSuccess(w, http.StatusOK, "User profile retrieved successfully", account)
}

// PATCH /api/user/update/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !authorize(w, auth.AuthorizeSelfOrAdmin(GetPrincipal(r), id)) {
		return
	}

	var req schema.UpdateProfileRequest
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
	req.PhotoAttached = photo != nil
	if !validateRequest(w, &req) {
		return
	}

	existing, ok := loadAccount(r.Context(), w, h.accounts, id)
	if !ok {
		return
	}

	patch := req.Patch()
	newPhotoKey := ""
	if photo != nil {
		photoURL, key, err := h.photos.Save(r.Context(), photo)
		if !handleBlobSaveError(w, err) {
			return
		}
		patch.ProfilePhoto = &photoURL
		newPhotoKey = key
	}

	updated, err := h.accounts.Update(r.Context(), existing.ID, patch)
	if err != nil {
		h.photos.DeleteKey(r.Context(), newPhotoKey)
		if errors.Is(err, store.ErrNotFound) {
			notFound(w, "User not found")
			return
		}
		slog.Error("error updating account", "error", err, "user_id", existing.ID)
		internalError(w)
		return
	}

	if newPhotoKey != "" && existing.GetProfilePhoto() != "" && existing.GetProfilePhoto() != updated.GetProfilePhoto() {
		h.photos.DeleteURL(r.Context(), existing.GetProfilePhoto())
	}

	writeSuccess(w, http.StatusOK, "User updated successfully", updated)
}

// DELETE /api/user/delete/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !authorize(w, auth.AuthorizeSelfOrAdmin(GetPrincipal(r), id)) {
		return
	}

	deleted, err := h.accounts.Delete(r.Context(), id)
	if errors.Is(err, store.ErrInvalidID) {
		badRequest(w, "Invalid user id")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error deleting account", "error", err, "user_id", id)
		internalError(w)
		return
	}

	if err := h.resets.DeleteForAccount(r.Context(), deleted.ID); err != nil {
		slog.Warn("error deleting reset tokens for deleted account", "error", err, "user_id", deleted.ID)
	}
	h.photos.DeleteURL(r.Context(), deleted.GetProfilePhoto())

	writeSuccess(w, http.StatusOK, "User deleted successfully", nil)
}

func loadAccount(ctx context.Context, w http.ResponseWriter, accounts store.Accounts, id string) (*models.Account, bool) {
	account, err := accounts.FindByID(ctx, id)
	if errors.Is(err, store.ErrInvalidID) {
		badRequest(w, "Invalid user id")
		return nil, false
	}
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "User not found")
		return nil, false
	}
	if err != nil {
		slog.Error("error finding account", "error", err, "user_id", id)
		internalError(w)
		return nil, false
	}
	return account, true
}
