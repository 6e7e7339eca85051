package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"

	"accounts/internal/blob"
)

type MediaHandler struct {
	blobs *blob.Service
}

func NewMediaHandler(blobs *blob.Service) *MediaHandler {
	return &MediaHandler{blobs: blobs}
}

// GET /media/*
func (h *MediaHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !blob.ValidKey(key) {
		notFound(w, "Media not found")
		return
	}

	body, info, err := h.blobs.Open(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		notFound(w, "Media not found")
		return
	}
	if err != nil {
		slog.Error("error opening profile photo", "error", err, "key", key)
		internalError(w)
		return
	}
	defer body.Close()

	name := path.Base(key)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("ETag", fmt.Sprintf("\"%s\"", name))
	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", name))

	if seeker, ok := body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, info.ModTime, seeker)
		return
	}

	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("error streaming profile photo", "error", err, "key", key)
	}
}
