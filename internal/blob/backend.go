package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var ErrNotFound = errors.New("blob not found")

type ObjectInfo struct {
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Backend stores opaque objects under slash separated keys.
type Backend interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// LocalBackend keeps objects as files under a root directory.
type LocalBackend struct {
	rootDir string
}

func NewLocalBackend(rootDir string) (*LocalBackend, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}

	probe, err := os.CreateTemp(rootDir, ".write-probe-*")
	if err != nil {
		return nil, fmt.Errorf("blob root directory is not writable: %w", err)
	}
	probe.Close()
	_ = os.Remove(probe.Name())

	return &LocalBackend{rootDir: rootDir}, nil
}

func (b *LocalBackend) Put(_ context.Context, key, _ string, body io.Reader, _ int64) error {
	absPath, err := b.resolveStoragePath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), "blob-write-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary blob file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmpFile, body); err != nil {
		return fmt.Errorf("writing blob file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temporary blob file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return fmt.Errorf("finalizing blob file: %w", err)
	}

	return nil
}

func (b *LocalBackend) Get(_ context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	absPath, err := b.resolveStoragePath(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening blob file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat blob file: %w", err)
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return f, &ObjectInfo{
		ContentType: contentType,
		Size:        stat.Size(),
		ModTime:     stat.ModTime(),
	}, nil
}

func (b *LocalBackend) Delete(_ context.Context, key string) error {
	absPath, err := b.resolveStoragePath(key)
	if err != nil {
		return err
	}

	err = os.Remove(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting blob file: %w", err)
	}

	return nil
}

func (b *LocalBackend) resolveStoragePath(key string) (string, error) {
	if !ValidKey(key) {
		return "", ErrInvalidPath
	}
	return filepath.Join(b.rootDir, filepath.FromSlash(key)), nil
}
