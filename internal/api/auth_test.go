package api

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"accounts/internal/constants"
	"accounts/internal/mediaurl"
	"accounts/internal/store"
)

func TestRegisterReturnsTokenAndProfileWithoutPassword(t *testing.T) {
	env := newTestEnv(t, 1000)

	rr := env.doJSON(t, http.MethodPost, "/api/auth/register", "", registerBody("Alice@Example.com", false))
	resp := expectStatus(t, rr, http.StatusCreated)
	if resp.Status != statusSuccess {
		t.Fatalf("status field = %q, want %q", resp.Status, statusSuccess)
	}

	var data map[string]any
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("json.Unmarshal(data) error = %v", err)
	}
	user, ok := data["user"].(map[string]any)
	if !ok {
		t.Fatalf("data.user missing: %s", resp.Data)
	}
	for _, hidden := range []string{"password", "password_hash", "PasswordHash"} {
		if _, present := user[hidden]; present {
			t.Fatalf("data.user exposes %q", hidden)
		}
	}
	if user["email"] != "alice@example.com" {
		t.Fatalf("email = %v, want lower-cased", user["email"])
	}
	if strings.Contains(rr.Body.String(), testPassword) {
		t.Fatal("response body contains the plaintext password")
	}

	token, _ := data["token"].(string)
	claims, err := env.tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != user["id"] || claims.IsAdmin {
		t.Fatalf("claims = %+v, want user %v non-admin", claims, user["id"])
	}

	stored, err := env.store.Accounts().FindByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if stored.PasswordHash == testPassword || stored.PasswordHash == "" {
		t.Fatalf("stored password hash = %q, want a digest", stored.PasswordHash)
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.register(t, "a@x.com", false)

	rr := env.doJSON(t, http.MethodPost, "/api/auth/register", "", registerBody("A@X.com", false))
	expectError(t, rr, http.StatusConflict, constants.ErrCodeConflict)

	_, total, err := env.store.Accounts().List(context.Background(), storeListAll)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 {
		t.Fatalf("total accounts = %d, want 1", total)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, 1000)

	body := strings.Replace(registerBody("bad-email", false), `"gender": "female"`, `"gender": "other"`, 1)
	rr := env.doJSON(t, http.MethodPost, "/api/auth/register", "", body)
	resp := expectError(t, rr, http.StatusBadRequest, constants.ErrCodeValidationFailed)

	fields := map[string]bool{}
	for _, f := range resp.Error.Fields {
		fields[f.Field] = true
	}
	if !fields["email"] || !fields["gender"] {
		t.Fatalf("fields = %+v, want email and gender", resp.Error.Fields)
	}
}

func TestRegisterRejectsMalformedAndOversizedBodies(t *testing.T) {
	env := newTestEnv(t, 1000)

	rr := env.doJSON(t, http.MethodPost, "/api/auth/register", "", `{"email":`)
	expectError(t, rr, http.StatusBadRequest, constants.ErrCodeValidationFailed)

	rr = env.doJSON(t, http.MethodPost, "/api/auth/login", "", `{"email":"`+strings.Repeat("a", jsonBodyLimit)+`"}`)
	expectError(t, rr, http.StatusRequestEntityTooLarge, constants.ErrCodePayloadTooLarge)

	huge := `{"about":"` + strings.Repeat("a", 3<<20) + `"}`
	rr = env.doJSON(t, http.MethodPost, "/api/auth/register", "", huge)
	expectError(t, rr, http.StatusRequestEntityTooLarge, constants.ErrCodePayloadTooLarge)
}

func TestRegisterMultipartWithPhoto(t *testing.T) {
	env := newTestEnv(t, 1000)

	body, contentType := multipartUpdate(t, map[string]string{
		"first_name":    "Alice",
		"email":         "photo@x.com",
		"password":      testPassword,
		"about":         "Registers with a profile photo",
		"is_admin":      "false",
		"gender":        "female",
		"date_of_birth": "1990-05-17",
		"address":       `{"pincode":"560001"}`,
	}, testPNGBytes(t, color.RGBA{G: 255, A: 255}))
	rr := env.do(t, http.MethodPost, "/api/auth/register", "", body, contentType)
	resp := expectStatus(t, rr, http.StatusCreated)

	var data AuthResponse
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("json.Unmarshal(data) error = %v", err)
	}
	key, ok := mediaurl.ParseKey(data.User.GetProfilePhoto())
	if !ok {
		t.Fatalf("profile_photo = %q, want media URL", data.User.GetProfilePhoto())
	}
	if media := env.do(t, http.MethodGet, mediaurl.PathPrefix+key, "", nil, ""); media.Code != http.StatusOK {
		t.Fatalf("media status = %d, want %d", media.Code, http.StatusOK)
	}
}

func TestRegisterDuplicateDiscardsPhoto(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.register(t, "a@x.com", false)

	body, contentType := multipartUpdate(t, map[string]string{
		"first_name":    "Alice",
		"email":         "a@x.com",
		"password":      testPassword,
		"about":         "Second attempt with the same email",
		"gender":        "female",
		"date_of_birth": "1990-05-17",
	}, testPNGBytes(t, color.RGBA{R: 255, A: 255}))
	rr := env.do(t, http.MethodPost, "/api/auth/register", "", body, contentType)
	expectError(t, rr, http.StatusConflict, constants.ErrCodeConflict)

	var files int
	err := filepath.WalkDir(env.photoRoot, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files++
		}
		return err
	})
	if err != nil {
		t.Fatalf("WalkDir() error = %v", err)
	}
	if files != 0 {
		t.Fatalf("stored files = %d, want 0", files)
	}
}

func TestLoginSucceedsAndFailsGenerically(t *testing.T) {
	env := newTestEnv(t, 1000)
	acct := env.register(t, "a@x.com", false)

	rr := env.login(t, "A@x.com", testPassword)
	resp := expectStatus(t, rr, http.StatusOK)
	var data AuthResponse
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("json.Unmarshal(data) error = %v", err)
	}
	claims, err := env.tokens.Verify(data.Token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != acct.ID {
		t.Fatalf("token subject = %q, want %q", claims.UserID, acct.ID)
	}

	wrong := expectError(t, env.login(t, "a@x.com", "nope123"), http.StatusUnauthorized, constants.ErrCodeInvalidCredentials)
	unknown := expectError(t, env.login(t, "nobody@x.com", testPassword), http.StatusUnauthorized, constants.ErrCodeInvalidCredentials)
	if wrong.Message != unknown.Message {
		t.Fatalf("messages differ: %q vs %q", wrong.Message, unknown.Message)
	}
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	env := newTestEnv(t, 1000)
	acct := env.register(t, "a@x.com", false)

	if _, err := env.store.Accounts().SetActive(context.Background(), acct.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	expectError(t, env.login(t, "a@x.com", testPassword), http.StatusUnauthorized, constants.ErrCodeInvalidCredentials)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.register(t, "a@x.com", false)

	rr := env.doJSON(t, http.MethodPost, "/api/auth/request-password-reset", "", `{"email":"a@x.com"}`)
	expectStatus(t, rr, http.StatusOK)
	first := env.mailer.lastToken(t)

	rr = env.doJSON(t, http.MethodPost, "/api/auth/request-password-reset", "", `{"email":"a@x.com"}`)
	expectStatus(t, rr, http.StatusOK)
	second := env.mailer.lastToken(t)
	if first == second {
		t.Fatal("second reset request reused the first token")
	}

	rr = env.doJSON(t, http.MethodPost, "/api/auth/reset-password/"+first, "", `{"password":"newpass"}`)
	expectError(t, rr, http.StatusBadRequest, constants.ErrCodeResetInvalid)

	rr = env.doJSON(t, http.MethodPost, "/api/auth/reset-password/"+second, "", `{"password":"newpass"}`)
	expectStatus(t, rr, http.StatusOK)

	expectStatus(t, env.login(t, "a@x.com", "newpass"), http.StatusOK)
	expectError(t, env.login(t, "a@x.com", testPassword), http.StatusUnauthorized, constants.ErrCodeInvalidCredentials)

	rr = env.doJSON(t, http.MethodPost, "/api/auth/reset-password/"+second, "", `{"password":"another"}`)
	expectError(t, rr, http.StatusBadRequest, constants.ErrCodeResetInvalid)
}

func TestPasswordResetInvalidBodyKeepsToken(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.register(t, "a@x.com", false)

	expectStatus(t, env.doJSON(t, http.MethodPost, "/api/auth/request-password-reset", "", `{"email":"a@x.com"}`), http.StatusOK)
	token := env.mailer.lastToken(t)

	rr := env.doJSON(t, http.MethodPost, "/api/auth/reset-password/"+token, "", `{"password":"x"}`)
	expectError(t, rr, http.StatusBadRequest, constants.ErrCodeValidationFailed)

	rr = env.doJSON(t, http.MethodPost, "/api/auth/reset-password/"+token, "", `{"password":"valid-one"}`)
	expectStatus(t, rr, http.StatusOK)
}

type flakyPasswordAccounts struct {
	store.Accounts

	mu   sync.Mutex
	fail bool
}

func (a *flakyPasswordAccounts) SetPassword(ctx context.Context, id, passwordHash string) error {
	a.mu.Lock()
	fail := a.fail
	a.mu.Unlock()
	if fail {
		return errors.New("store down")
	}
	return a.Accounts.SetPassword(ctx, id, passwordHash)
}

func (a *flakyPasswordAccounts) setFail(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = fail
}

type accountsOverride struct {
	store.Store
	accounts store.Accounts
}

func (s accountsOverride) Accounts() store.Accounts {
	return s.accounts
}

func TestPasswordResetFailedUpdateKeepsToken(t *testing.T) {
	var accounts *flakyPasswordAccounts
	env := newTestEnvWithStore(t, 1000, func(s store.Store) store.Store {
		accounts = &flakyPasswordAccounts{Accounts: s.Accounts()}
		return accountsOverride{Store: s, accounts: accounts}
	})
	env.register(t, "a@x.com", false)

	expectStatus(t, env.doJSON(t, http.MethodPost, "/api/auth/request-password-reset", "", `{"email":"a@x.com"}`), http.StatusOK)
	token := env.mailer.lastToken(t)

	accounts.setFail(true)
	rr := env.doJSON(t, http.MethodPost, "/api/auth/reset-password/"+token, "", `{"password":"newpass"}`)
	expectError(t, rr, http.StatusInternalServerError, constants.ErrCodeInternal)
	expectStatus(t, env.login(t, "a@x.com", testPassword), http.StatusOK)

	accounts.setFail(false)
	rr = env.doJSON(t, http.MethodPost, "/api/auth/reset-password/"+token, "", `{"password":"newpass"}`)
	expectStatus(t, rr, http.StatusOK)
	expectStatus(t, env.login(t, "a@x.com", "newpass"), http.StatusOK)
}

func TestRequestPasswordResetUnknownEmailIsGeneric(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.register(t, "a@x.com", false)

	known := expectStatus(t, env.doJSON(t, http.MethodPost, "/api/auth/request-password-reset", "", `{"email":"a@x.com"}`), http.StatusOK)
	unknown := expectStatus(t, env.doJSON(t, http.MethodPost, "/api/auth/request-password-reset", "", `{"email":"b@x.com"}`), http.StatusOK)

	if known.Message != unknown.Message {
		t.Fatalf("messages differ: %q vs %q", known.Message, unknown.Message)
	}
	if env.mailer.count() != 1 {
		t.Fatalf("emails sent = %d, want 1", env.mailer.count())
	}
}

func TestRequestPasswordResetReportsDeliveryFailure(t *testing.T) {
	env := newTestEnv(t, 1000)
	env.register(t, "a@x.com", false)
	env.mailer.fail = true

	rr := env.doJSON(t, http.MethodPost, "/api/auth/request-password-reset", "", `{"email":"a@x.com"}`)
	expectError(t, rr, http.StatusInternalServerError, constants.ErrCodeInternal)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	env := newTestEnv(t, 2)

	for i := 0; i < 2; i++ {
		expectError(t, env.login(t, "nobody@x.com", testPassword), http.StatusUnauthorized, constants.ErrCodeInvalidCredentials)
	}
	expectError(t, env.login(t, "nobody@x.com", testPassword), http.StatusTooManyRequests, constants.ErrCodeRateLimited)
}
