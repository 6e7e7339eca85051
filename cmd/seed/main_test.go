package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"accounts/internal/auth"
	"accounts/internal/db"
	"accounts/internal/schema"
	"accounts/internal/store"
)

func TestParseFixtureExample(t *testing.T) {
	data, err := os.ReadFile("seed.example.yaml")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	requests, err := parseFixture(data)
	if err != nil {
		t.Fatalf("parseFixture() error = %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("len(requests) = %d, want 2", len(requests))
	}
	if !requests[0].IsAdmin {
		t.Fatal("first entry is_admin = false, want true")
	}
	if requests[1].DateOfBirth != "1992-07-21" {
		t.Fatalf("date_of_birth = %q, want 1992-07-21", requests[1].DateOfBirth)
	}
	if requests[1].Address == nil || string(requests[1].Address.Pincode) != "560001" {
		t.Fatalf("address = %+v, want pincode 560001", requests[1].Address)
	}
}

func TestParseFixtureRejectsInvalidEntry(t *testing.T) {
	fixture := `
- first_name: Al
  email: not-an-email
  password: pw
`
	_, err := parseFixture([]byte(fixture))
	if err == nil {
		t.Fatal("parseFixture() error = nil, want validation error")
	}
	if _, ok := schema.AsValidationError(err); !ok {
		t.Fatalf("parseFixture() error = %v, want a validation error", err)
	}
	if !strings.Contains(err.Error(), "entry 0") {
		t.Fatalf("error = %q, want entry index", err)
	}
}

func TestSeedAndReset(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(ctx, filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	st := db.NewStore(database)
	t.Cleanup(func() { _ = st.Close(ctx) })

	data, err := os.ReadFile("seed.example.yaml")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	requests, err := parseFixture(data)
	if err != nil {
		t.Fatalf("parseFixture() error = %v", err)
	}
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}

	created, err := seed(ctx, st.Accounts(), hasher, requests)
	if err != nil || created != 2 {
		t.Fatalf("seed() = %d, %v, want 2, nil", created, err)
	}

	created, err = seed(ctx, st.Accounts(), hasher, requests)
	if err != nil || created != 0 {
		t.Fatalf("second seed() = %d, %v, want 0, nil", created, err)
	}

	if err := wipe(ctx, st.Accounts(), requests); err != nil {
		t.Fatalf("wipe() error = %v", err)
	}
	_, total, err := st.Accounts().List(ctx, store.ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 0 {
		t.Fatalf("total after wipe = %d, want 0", total)
	}
}
