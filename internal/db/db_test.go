package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"accounts/internal/models"
	"accounts/internal/store"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

func newTestAccount(email string, admin bool) *models.Account {
	return &models.Account{
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		FirstName:    "Alice",
		About:        "Curious about everything",
		IsAdmin:      admin,
		IsActive:     true,
		Gender:       models.GenderFemale,
		DateOfBirth:  time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Address:      &models.Address{StreetName: "1 Main St", Pincode: "560001"},
	}
}

func TestAccountCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openTestDB(t))

	a := newTestAccount("alice@example.com", false)
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !validID(accountIDPrefix, a.ID) {
		t.Fatalf("Create() assigned malformed id %q", a.ID)
	}

	byID, err := repo.FindByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if byID.Email != "alice@example.com" || byID.PasswordHash != a.PasswordHash {
		t.Fatalf("FindByID() = %+v", byID)
	}
	if byID.Address == nil || byID.Address.Pincode != "560001" {
		t.Fatalf("address = %+v, want pincode 560001", byID.Address)
	}
	if !byID.DateOfBirth.Equal(a.DateOfBirth) {
		t.Fatalf("date_of_birth = %v, want %v", byID.DateOfBirth, a.DateOfBirth)
	}
	if byID.ProfilePhoto != nil {
		t.Fatalf("profile_photo = %v, want nil", *byID.ProfilePhoto)
	}

	byEmail, err := repo.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if byEmail.ID != a.ID {
		t.Fatalf("FindByEmail() id = %q, want %q", byEmail.ID, a.ID)
	}
}

func TestAccountCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openTestDB(t))

	if err := repo.Create(ctx, newTestAccount("alice@example.com", false)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, newTestAccount("ALICE@example.com", false))
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("Create() error = %v, want ErrDuplicate", err)
	}
}

func TestAccountFindErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openTestDB(t))

	if _, err := repo.FindByID(ctx, "not-an-id"); !errors.Is(err, store.ErrInvalidID) {
		t.Fatalf("FindByID(malformed) error = %v, want ErrInvalidID", err)
	}
	if _, err := repo.FindByID(ctx, "usr_000000000000000000000000"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindByID(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := repo.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindByEmail(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAccountUpdateAppliesPatchOnly(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openTestDB(t))

	a := newTestAccount("alice@example.com", false)
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	about := "Now writing Go every day"
	photo := "/media/profile_photo/ab/abc.png"
	updated, err := repo.Update(ctx, a.ID, models.AccountPatch{About: &about, ProfilePhoto: &photo})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.About != about || updated.GetProfilePhoto() != photo {
		t.Fatalf("Update() = %+v", updated)
	}
	if updated.FirstName != "Alice" || updated.Email != "alice@example.com" || updated.IsAdmin {
		t.Fatalf("Update() changed untouched fields: %+v", updated)
	}

	stored, err := repo.FindByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.About != about || stored.PasswordHash != a.PasswordHash {
		t.Fatalf("stored = %+v", stored)
	}
}

func TestAccountFlagsAndPassword(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openTestDB(t))

	a := newTestAccount("alice@example.com", false)
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.SetActive(ctx, a.ID, false)
	if err != nil || got.IsActive {
		t.Fatalf("SetActive(false) = %+v, %v", got, err)
	}
	got, err = repo.SetAdmin(ctx, a.ID, true)
	if err != nil || !got.IsAdmin {
		t.Fatalf("SetAdmin(true) = %+v, %v", got, err)
	}

	if err := repo.SetPassword(ctx, a.ID, "new-hash"); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	stored, _ := repo.FindByID(ctx, a.ID)
	if stored.PasswordHash != "new-hash" {
		t.Fatalf("password_hash = %q, want %q", stored.PasswordHash, "new-hash")
	}

	if err := repo.SetPassword(ctx, "usr_000000000000000000000000", "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("SetPassword(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAccountListPaginates(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openTestDB(t))

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		if err := repo.Create(ctx, newTestAccount(email, false)); err != nil {
			t.Fatalf("Create(%s) error = %v", email, err)
		}
	}

	page, total, err := repo.List(ctx, store.ListOptions{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3", total)
	}
	if len(page) != 1 || page[0].Email != "c@example.com" {
		t.Fatalf("page = %+v, want only c@example.com", page)
	}
}

func TestAccountDeleteCascadesResetTokens(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	accounts := NewAccountRepository(database)
	resets := NewResetTokenRepository(database)

	a := newTestAccount("alice@example.com", false)
	if err := accounts.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := resets.Replace(ctx, a.ID, "hash-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	deleted, err := accounts.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted.Email != "alice@example.com" {
		t.Fatalf("Delete() returned %+v", deleted)
	}

	if _, err := resets.FindValid(ctx, "hash-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindValid() after account delete error = %v, want ErrNotFound", err)
	}
	if _, err := accounts.Delete(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestAccountDeleteNonAdmins(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(openTestDB(t))

	admin := newTestAccount("admin@example.com", true)
	adminPhoto := "http://localhost:4040/media/profile_photo/aa/admin.jpg"
	admin.ProfilePhoto = &adminPhoto
	withPhoto := newTestAccount("a@example.com", false)
	photo := "http://localhost:4040/media/profile_photo/bb/a.jpg"
	withPhoto.ProfilePhoto = &photo
	for _, a := range []*models.Account{
		admin,
		withPhoto,
		newTestAccount("b@example.com", false),
	} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	n, photos, err := repo.DeleteNonAdmins(ctx)
	if err != nil {
		t.Fatalf("DeleteNonAdmins() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}
	if len(photos) != 1 || photos[0] != photo {
		t.Fatalf("photos = %v, want [%s]", photos, photo)
	}
	if _, err := repo.FindByID(ctx, admin.ID); err != nil {
		t.Fatalf("admin should survive, FindByID() error = %v", err)
	}
}

func TestResetTokenReplaceKeepsOnePerAccount(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	accounts := NewAccountRepository(database)
	resets := NewResetTokenRepository(database)

	a := newTestAccount("alice@example.com", false)
	if err := accounts.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := resets.Replace(ctx, a.ID, "hash-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	second, err := resets.Replace(ctx, a.ID, "hash-2", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if _, err := resets.FindValid(ctx, "hash-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindValid(old) error = %v, want ErrNotFound", err)
	}
	got, err := resets.FindValid(ctx, "hash-2")
	if err != nil {
		t.Fatalf("FindValid(new) error = %v", err)
	}
	if got.ID != second.ID || got.AccountID != a.ID {
		t.Fatalf("FindValid() = %+v, want %+v", got, second)
	}

	if err := resets.Delete(ctx, got.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := resets.Delete(ctx, got.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestResetTokenExpiredIsInvisibleAndPurged(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	accounts := NewAccountRepository(database)
	resets := NewResetTokenRepository(database)

	a := newTestAccount("alice@example.com", false)
	if err := accounts.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := resets.Replace(ctx, a.ID, "stale", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if _, err := resets.FindValid(ctx, "stale"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("FindValid(expired) error = %v, want ErrNotFound", err)
	}

	n, err := resets.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("DeleteExpired() = %d, want 1", n)
	}
}

func TestStoreImplementsContracts(t *testing.T) {
	s := NewStore(openTestDB(t))
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if s.Accounts() == nil || s.ResetTokens() == nil {
		t.Fatal("Store repositories are nil")
	}
}
