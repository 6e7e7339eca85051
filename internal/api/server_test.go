package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"accounts/internal/auth"
	"accounts/internal/blob"
	"accounts/internal/config"
	"accounts/internal/db"
	"accounts/internal/store"
)

const (
	testBaseURL  = "http://localhost:4040"
	testResetURL = testBaseURL + "/api/auth/reset-password/"
	testPassword = "pw123"
)

var storeListAll = store.ListOptions{Limit: 1000}

type sentReset struct {
	to   string
	name string
	link string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentReset
	fail bool
}

func (m *recordingMailer) SendPasswordReset(to, name, link string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentReset{to: to, name: name, link: link})
	return nil
}

func (m *recordingMailer) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no reset email sent")
	}
	return strings.TrimPrefix(m.sent[len(m.sent)-1].link, testResetURL)
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testEnv struct {
	server    *Server
	store     *db.Store
	tokens    *auth.TokenService
	mailer    *recordingMailer
	photoRoot string
}

func openTestStore(t *testing.T) *db.Store {
	t.Helper()

	database, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	s := db.NewStore(database)
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})

	return s
}

func newTestEnv(t *testing.T, authPerMinute int) *testEnv {
	t.Helper()

	return newTestEnvWithStore(t, authPerMinute, func(s store.Store) store.Store { return s })
}

// newTestEnvWithStore lets a test wrap the SQLite store the server sees.
// env.store stays the unwrapped store.
func newTestEnvWithStore(t *testing.T, authPerMinute int, wrap func(store.Store) store.Store) *testEnv {
	t.Helper()

	st := openTestStore(t)

	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher() error = %v", err)
	}
	tokens, err := auth.NewTokenService(strings.Repeat("k", 32), time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	mailer := &recordingMailer{}
	served := wrap(st)
	resets := auth.NewResetService(served.ResetTokens(), mailer, time.Hour, testResetURL)

	photoRoot := t.TempDir()
	backend, err := blob.NewLocalBackend(photoRoot)
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}
	blobs, err := blob.NewService(backend, 1<<20)
	if err != nil {
		t.Fatalf("blob.NewService() error = %v", err)
	}

	cfg := &config.Config{
		Server:    config.ServerConfig{BaseURL: testBaseURL, CORSOrigins: []string{"https://app.example.com"}},
		RateLimit: config.RateLimitConfig{AuthRequestsPerMinute: authPerMinute},
	}

	server, err := NewServer(cfg, Dependencies{
		Store:  served,
		Hasher: hasher,
		Tokens: tokens,
		Resets: resets,
		Blobs:  blobs,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	return &testEnv{
		server:    server,
		store:     st,
		tokens:    tokens,
		mailer:    mailer,
		photoRoot: photoRoot,
	}
}

type testEnvelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Error      *ErrorDetail    `json:"error"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doJSON(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	return e.do(t, method, path, token, reader, "application/json")
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) testEnvelope {
	t.Helper()

	var env testEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if env.StatusCode != rr.Code {
		t.Fatalf("status_code = %d, want %d", env.StatusCode, rr.Code)
	}
	return env
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) testEnvelope {
	t.Helper()

	if rr.Code != want {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, want, rr.Body.String())
	}
	return decodeEnvelope(t, rr)
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) testEnvelope {
	t.Helper()

	env := expectStatus(t, rr, status)
	if env.Status != statusError {
		t.Fatalf("status field = %q, want %q", env.Status, statusError)
	}
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("error = %+v, want code %q", env.Error, code)
	}
	return env
}

func registerBody(email string, admin bool) string {
	return fmt.Sprintf(`{
		"first_name": "Alice",
		"last_name": "Smith",
		"email": %q,
		"password": %q,
		"about": "Enjoys long walks and short meetings",
		"address": {"street_name": "1 Main St", "pincode": 560001, "state": "KA", "country": "India"},
		"is_admin": %t,
		"gender": "female",
		"date_of_birth": "1990-05-17"
	}`, email, testPassword, admin)
}

type registeredAccount struct {
	ID    string
	Token string
}

func (e *testEnv) register(t *testing.T, email string, admin bool) registeredAccount {
	t.Helper()

	rr := e.doJSON(t, http.MethodPost, "/api/auth/register", "", registerBody(email, admin))
	env := expectStatus(t, rr, http.StatusCreated)

	var data struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("json.Unmarshal(data) error = %v", err)
	}
	if data.Token == "" || data.User.ID == "" {
		t.Fatalf("register data = %s, want token and user id", env.Data)
	}
	return registeredAccount{ID: data.User.ID, Token: data.Token}
}

func (e *testEnv) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	return e.doJSON(t, http.MethodPost, "/api/auth/login", "", string(body))
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return bytes.NewReader(b)
}
