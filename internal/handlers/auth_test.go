package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dphs-ocr/apiserver/config"
	"github.com/dphs-ocr/apiserver/internal/services"
	"github.com/dphs-ocr/apiserver/internal/store"
	"github.com/dphs-ocr/apiserver/types"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users map[string]types.User
}

func newFakeUserRepo(users ...types.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]types.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	user, ok := r.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLogin = &at
	r.users[id] = user
	return nil
}

func testUser(t *testing.T, password string) types.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return types.User{
		ID:           "user-001",
		Username:     "healthworker1",
		PasswordHash: string(hash),
		Name:         "Dr. Rajesh Kumar",
		Role:         "Health Worker",
	}
}

func newAuthRouter(repo *fakeUserRepo, expiry time.Duration) chi.Router {
	router := chi.NewRouter()
	AuthRouter(router, services.NewUserService(repo), config.JWTConfig{
		Secret: "test-secret",
		Expiry: expiry,
	})
	return router
}

func postJSON(t *testing.T, router chi.Router, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	for key, values := range header {
		req.Header[key] = values
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return env
}

func loginToken(t *testing.T, router chi.Router, username, password string) string {
	t.Helper()
	rec := postJSON(t, router, "/login", LoginRequest{Username: username, Password: password}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("login data = %T", env.Data)
	}
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("login response missing token")
	}
	return token
}

func TestLogin(t *testing.T) {
	repo := newFakeUserRepo(testUser(t, "password123"))
	router := newAuthRouter(repo, time.Hour)

	rec := postJSON(t, router, "/login", LoginRequest{Username: "healthworker1", Password: "password123"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !env.Success || env.Message != "Login successful" {
		t.Errorf("envelope = %+v", env)
	}

	data := env.Data.(map[string]any)
	user := data["user"].(map[string]any)
	if user["username"] != "healthworker1" {
		t.Errorf("user = %v", user)
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Error("password hash leaked in response")
	}
	if repo.users["user-001"].LastLogin == nil {
		t.Error("last login not recorded")
	}
}

func TestLoginFailures(t *testing.T) {
	repo := newFakeUserRepo(testUser(t, "password123"))
	router := newAuthRouter(repo, time.Hour)

	cases := []struct {
		name     string
		username string
		password string
		status   int
		message  string
	}{
		{"missing username", "", "password123", http.StatusBadRequest, "Username is required"},
		{"missing password", "healthworker1", "", http.StatusBadRequest, "Password is required"},
		{"unknown user", "nobody", "password123", http.StatusUnauthorized, "Invalid username or password"},
		{"wrong password", "healthworker1", "wrong", http.StatusUnauthorized, "Invalid username or password"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, router, "/login", LoginRequest{Username: tc.username, Password: tc.password}, nil)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			env := decodeEnvelope(t, rec)
			if env.Success {
				t.Error("success = true on failed login")
			}
			if env.Message != tc.message {
				t.Errorf("message = %q, want %q", env.Message, tc.message)
			}
		})
	}
}

func TestProfile(t *testing.T) {
	repo := newFakeUserRepo(testUser(t, "password123"))
	router := newAuthRouter(repo, time.Hour)
	token := loginToken(t, router, "healthworker1", "password123")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	user := env.Data.(map[string]any)
	if user["id"] != "user-001" {
		t.Errorf("profile user = %v", user)
	}
}

func TestProfileWithoutToken(t *testing.T) {
	router := newAuthRouter(newFakeUserRepo(testUser(t, "password123")), time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "Authentication required. Please provide a valid token." {
		t.Errorf("message = %q", env.Message)
	}
}

func TestProfileExpiredToken(t *testing.T) {
	repo := newFakeUserRepo(testUser(t, "password123"))
	router := newAuthRouter(repo, -time.Minute)
	token := loginToken(t, router, "healthworker1", "password123")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "Token has expired. Please login again." {
		t.Errorf("message = %q", env.Message)
	}
}

func TestProfileDeletedUser(t *testing.T) {
	repo := newFakeUserRepo(testUser(t, "password123"))
	router := newAuthRouter(repo, time.Hour)
	token := loginToken(t, router, "healthworker1", "password123")
	delete(repo.users, "user-001")

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "User not found" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestVerify(t *testing.T) {
	repo := newFakeUserRepo(testUser(t, "password123"))
	router := newAuthRouter(repo, time.Hour)
	token := loginToken(t, router, "healthworker1", "password123")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	rec := postJSON(t, router, "/verify", map[string]any{}, header)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Message != "Token is valid" {
		t.Errorf("message = %q", env.Message)
	}
}

func TestVerifyFailures(t *testing.T) {
	repo := newFakeUserRepo(testUser(t, "password123"))
	router := newAuthRouter(repo, time.Hour)

	rec := postJSON(t, router, "/verify", map[string]any{}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "No token provided" {
		t.Errorf("message = %q", env.Message)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer not.a.token")
	rec = postJSON(t, router, "/verify", map[string]any{}, header)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Message != "Invalid or expired token" {
		t.Errorf("message = %q", env.Message)
	}
}
