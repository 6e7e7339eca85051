package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"accounts/internal/db"
)

func writeConfig(t *testing.T, dir, uploadRoot string) string {
	t.Helper()

	cfg := strings.Join([]string{
		"server:",
		"  host: 127.0.0.1",
		"  port: 48213",
		"database:",
		"  driver: sqlite",
		"  path: " + filepath.Join(dir, "accounts.db"),
		"auth:",
		"  jwt_secret: " + strings.Repeat("s", 32),
		"email:",
		"  smtp:",
		"    host: localhost",
		"    port: 1025",
		"    from: no-reply@example.com",
		"storage:",
		"  driver: local",
		"  root: " + uploadRoot,
		"",
	}, "\n")

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRunClosesDatabaseOnStartupFailure(t *testing.T) {
	dir := t.TempDir()

	// A regular file where the upload directory should be.
	uploadRoot := filepath.Join(dir, "uploads")
	if err := os.WriteFile(uploadRoot, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	err := run(context.Background(), writeConfig(t, dir, uploadRoot))
	if err == nil || !strings.Contains(err.Error(), "blob storage") {
		t.Fatalf("run() error = %v, want blob storage failure", err)
	}

	dbPath := filepath.Join(dir, "accounts.db")
	if _, err := os.Stat(dbPath + "-wal"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("WAL file still present after run() returned (stat error = %v)", err)
	}

	database, err := db.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("db.Open() after run() error = %v", err)
	}
	_ = database.Close()
}

func TestRunReportsConfigErrors(t *testing.T) {
	err := run(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Fatalf("run() error = %v, want config error", err)
	}
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx, writeConfig(t, dir, filepath.Join(dir, "uploads"))); err != nil {
		t.Fatalf("run() error = %v, want nil", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "accounts.db") + "-wal"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("WAL file still present after shutdown (stat error = %v)", err)
	}
}
