package api

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"accounts/internal/blob"
	"accounts/internal/mediaurl"
	"accounts/internal/schema"
)

const profilePhotoField = "profile_photo"

// PhotoUploader stores profile photos and keeps the public URL mapping.
type PhotoUploader struct {
	blobs   *blob.Service
	baseURL string
}

func NewPhotoUploader(blobs *blob.Service, baseURL string) *PhotoUploader {
	return &PhotoUploader{blobs: blobs, baseURL: baseURL}
}

// RequestLimit is the body limit for routes that accept a photo: the photo
// itself plus room for the text fields.
func (u *PhotoUploader) RequestLimit() int64 {
	return u.blobs.MaxUploadBytes() + 1<<20
}

// profilePhotoHeader returns the single profile_photo part of an already
// parsed multipart form, or nil when none was sent.
func profilePhotoHeader(r *http.Request) (*multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}

	headers := r.MultipartForm.File[profilePhotoField]
	switch {
	case len(headers) == 0:
		return nil, nil
	case len(headers) > 1:
		return nil, &schema.ValidationError{Fields: []schema.FieldError{{
			Field:   profilePhotoField,
			Rule:    "single",
			Message: "profile_photo must be sent once",
		}}}
	case strings.TrimSpace(headers[0].Filename) == "":
		return nil, &schema.ValidationError{Fields: []schema.FieldError{{
			Field:   profilePhotoField,
			Rule:    "file",
			Message: "profile_photo must be a file",
		}}}
	}

	return headers[0], nil
}

// Save stores the uploaded part and returns its public URL and key.
func (u *PhotoUploader) Save(ctx context.Context, header *multipart.FileHeader) (string, string, error) {
	file, err := header.Open()
	if err != nil {
		return "", "", err
	}
	defer file.Close()

	stored, err := u.blobs.Save(ctx, header.Filename, file)
	if err != nil {
		return "", "", err
	}

	return mediaurl.Photo(u.baseURL, stored.Key), stored.Key, nil
}

// DeleteKey removes a stored photo, logging failures.
func (u *PhotoUploader) DeleteKey(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := u.blobs.Delete(ctx, key); err != nil {
		slog.Warn("error deleting profile photo", "error", err, "key", key)
	}
}

// DeleteURL removes the photo behind a URL previously returned by Save.
// URLs that point elsewhere are ignored.
func (u *PhotoUploader) DeleteURL(ctx context.Context, photoURL string) {
	key, ok := mediaurl.ParseKey(photoURL)
	if !ok || !blob.ValidKey(key) {
		return
	}
	u.DeleteKey(ctx, key)
}

func handleBlobSaveError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}

	if errors.Is(err, blob.ErrFileTooLarge) {
		tooLarge(w, "File exceeds maximum upload size")
		return false
	}
	if errors.Is(err, blob.ErrDisallowedType) {
		photoRejected(w, "type", "profile_photo must be a JPEG, PNG, GIF or WebP image")
		return false
	}
	if errors.Is(err, blob.ErrExecutableFile) {
		photoRejected(w, "type", "Executable files are not allowed")
		return false
	}

	slog.Error("error saving profile photo", "error", err)
	internalError(w)
	return false
}

func photoRejected(w http.ResponseWriter, rule, message string) {
	validationFailed(w, &schema.ValidationError{Fields: []schema.FieldError{{
		Field:   profilePhotoField,
		Rule:    rule,
		Message: message,
	}}})
}
