package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"accounts/internal/auth"
	"accounts/internal/constants"
	"accounts/internal/models"
	"accounts/internal/schema"
	"accounts/internal/store"
)

// AdminHandler serves the admin-only directory routes. The router runs
// RequireAdmin in front of every method.
type AdminHandler struct {
	accounts store.Accounts
	photos   *PhotoUploader
}

func NewAdminHandler(accounts store.Accounts, photos *PhotoUploader) *AdminHandler {
	return &AdminHandler{accounts: accounts, photos: photos}
}

type AccountListResponse struct {
	Users []*models.Account `json:"users"`
	Page  int64             `json:"page"`
	Limit int64             `json:"limit"`
	Total int64             `json:"total"`
}

type BulkDeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// GET /api/admin?page=&limit=
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, ok := queryInt(w, r, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", constants.AccountListDefaultLimit)
	if !ok {
		return
	}
	if page < 1 {
		badRequest(w, "page must be at least 1")
		return
	}
	if limit < 1 || limit > constants.AccountListMaxLimit {
		badRequest(w, "limit must be between 1 and "+strconv.Itoa(constants.AccountListMaxLimit))
		return
	}
	if page-1 > math.MaxInt64/limit {
		badRequest(w, "page is out of range")
		return
	}

	accounts, total, err := h.accounts.List(r.Context(), store.ListOptions{
		Offset: (page - 1) * limit,
		Limit:  limit,
	})
	if err != nil {
		slog.Error("error listing accounts", "error", err)
		internalError(w)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}

	writeSuccess(w, http.StatusOK, "Users retrieved successfully", AccountListResponse{
		Users: accounts,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

// GET /api/admin/{id}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, ok := loadAccount(r.Context(), w, h.accounts, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeSuccess(w, http.StatusOK, "User found successfully", account)
}

// DELETE /api/admin/delete-all removes every account without the admin flag.
func (h *AdminHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	deleted, photos, err := h.accounts.DeleteNonAdmins(r.Context())
	if err != nil {
		slog.Error("error deleting non-admin accounts", "error", err)
		internalError(w)
		return
	}
	for _, photoURL := range photos {
		h.photos.DeleteURL(r.Context(), photoURL)
	}

	slog.Info("deleted non-admin accounts", "count", deleted, "by", GetPrincipal(r).AccountID)
	writeSuccess(w, http.StatusOK, "All users deleted successfully", BulkDeleteResponse{Deleted: deleted})
}

// PATCH /api/admin/{id}/active
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "active", h.accounts.SetActive)
}

// PATCH /api/admin/{id}/admin is the only way to change the admin flag
// after registration.
func (h *AdminHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, "admin", h.accounts.SetAdmin)
}

type flagSetter func(ctx context.Context, id string, value bool) (*models.Account, error)

func (h *AdminHandler) toggle(w http.ResponseWriter, r *http.Request, flag string, set flagSetter) {
	id := chi.URLParam(r, "id")

	var req schema.ToggleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	principal := GetPrincipal(r)
	if !*req.Value && auth.CanonicalID(id) == auth.CanonicalID(principal.AccountID) {
		badRequest(w, "You cannot remove your own "+flag+" flag")
		return
	}

	account, err := set(r.Context(), id, *req.Value)
	if errors.Is(err, store.ErrInvalidID) {
		badRequest(w, "Invalid user id")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error updating account flag", "error", err, "flag", flag, "user_id", id)
		internalError(w)
		return
	}

	slog.Info("account flag changed", "flag", flag, "value", *req.Value, "user_id", account.ID, "by", principal.AccountID)
	writeSuccess(w, http.StatusOK, "User updated successfully", account)
}

func queryInt(w http.ResponseWriter, r *http.Request, name string, fallback int64) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(w, name+" must be a whole number")
		return 0, false
	}
	return v, true
}
