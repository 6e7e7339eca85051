package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// KeyPrefix is the namespace for profile photos in the backend.
const KeyPrefix = "profile_photo"

var (
	ErrFileTooLarge   = errors.New("blob file too large")
	ErrDisallowedType = errors.New("disallowed blob mime type")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrInvalidPath    = errors.New("invalid blob path")
)

type StoredBlob struct {
	Key          string
	MimeType     string
	SizeBytes    int64
	OriginalName string
	CreatedAt    time.Time
}

// Service validates and stores profile photos.
type Service struct {
	backend        Backend
	maxUploadBytes int64
	maxEdge        int
}

func NewService(backend Backend, maxUploadBytes int64) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("blob backend is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	return &Service{
		backend:        backend,
		maxUploadBytes: maxUploadBytes,
		maxEdge:        DefaultPhotoMaxEdge,
	}, nil
}

func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// Save sniffs src, rejects executables and non images, re-encodes the
// image and stores it under a fresh key.
func (s *Service) Save(ctx context.Context, originalName string, src io.Reader) (*StoredBlob, error) {
	name := sanitizeOriginalName(originalName)

	sniff := make([]byte, 512)
	sniffN, sniffErr := io.ReadFull(src, sniff)
	if sniffErr != nil && sniffErr != io.EOF && sniffErr != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading blob data: %w", sniffErr)
	}
	sniff = sniff[:sniffN]

	if isExecutableSignature(sniff) {
		return nil, ErrExecutableFile
	}

	if !isAllowedMimeType(detectMimeType(sniff)) {
		return nil, ErrDisallowedType
	}

	raw, err := io.ReadAll(io.LimitReader(io.MultiReader(bytes.NewReader(sniff), src), s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading blob data: %w", err)
	}
	if int64(len(raw)) > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}

	img, err := NormalizeStaticImage(bytes.NewReader(raw), s.maxEdge, DefaultPhotoQuality)
	if err != nil {
		if errors.Is(err, ErrInvalidImage) {
			return nil, ErrDisallowedType
		}
		return nil, err
	}

	key := blobKey(uuid.NewString(), img.MimeType)
	if err := s.backend.Put(ctx, key, img.MimeType, bytes.NewReader(img.Data), int64(len(img.Data))); err != nil {
		return nil, err
	}

	return &StoredBlob{
		Key:          key,
		MimeType:     img.MimeType,
		SizeBytes:    int64(len(img.Data)),
		OriginalName: name,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	return s.backend.Get(ctx, key)
}

func (s *Service) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func blobKey(id, mimeType string) string {
	ext := ".jpg"
	if mimeType == "image/png" {
		ext = ".png"
	}
	return path.Join(KeyPrefix, id[:2], id+ext)
}

// ValidKey reports whether key has the shape Save produces.
func ValidKey(key string) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != KeyPrefix {
		return false
	}

	ext := path.Ext(parts[2])
	if ext != ".jpg" && ext != ".png" {
		return false
	}
	id := strings.TrimSuffix(parts[2], ext)
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return false
	}
	return parts[1] == id[:2]
}

func sanitizeOriginalName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "upload.bin"
	}
	if len(name) > 255 {
		return name[:255]
	}
	return name
}

func detectMimeType(sniff []byte) string {
	if len(sniff) == 0 {
		return "application/octet-stream"
	}

	return trimMimeParams(http.DetectContentType(sniff))
}

func isExecutableSignature(sniff []byte) bool {
	if len(sniff) < 2 {
		return false
	}

	if sniff[0] == 'M' && sniff[1] == 'Z' {
		return true // PE/COFF (Windows)
	}
	if len(sniff) >= 4 {
		if bytes.Equal(sniff[:4], []byte{0x7f, 'E', 'L', 'F'}) {
			return true // ELF
		}

		machoMagics := [][]byte{
			{0xfe, 0xed, 0xfa, 0xce},
			{0xce, 0xfa, 0xed, 0xfe},
			{0xfe, 0xed, 0xfa, 0xcf},
			{0xcf, 0xfa, 0xed, 0xfe},
			{0xca, 0xfe, 0xba, 0xbe},
			{0xbe, 0xba, 0xfe, 0xca},
		}
		for _, magic := range machoMagics {
			if bytes.Equal(sniff[:4], magic) {
				return true
			}
		}
	}

	if sniff[0] == '#' && sniff[1] == '!' {
		return true // shebang scripts
	}

	return false
}

func trimMimeParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

// Only raster formats the decoder understands are accepted; SVG is never
// an image here.
func isAllowedMimeType(mimeType string) bool {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}
