package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"vaultx/internal/domain"
	"vaultx/internal/middleware"
	"vaultx/internal/repository"
	"vaultx/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const testSecret = "handler-test-secret"

type memUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memUserRepository) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

func (m *memUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memUserRepository) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

func (m *memUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

type memBlobRepository struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memBlobRepository) Put(_ context.Context, userID, shardID string, data []byte) (*domain.Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "/" + shardID
	if _, ok := m.blobs[key]; ok {
		return nil, repository.ErrConflict
	}
	m.blobs[key] = data
	return &domain.Blob{UserID: userID, ShardID: shardID, Size: int64(len(data)), CreatedAt: time.Now()}, nil
}

func (m *memBlobRepository) Get(_ context.Context, userID, shardID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[userID+"/"+shardID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return data, nil
}

func (m *memBlobRepository) Delete(_ context.Context, userID string, shardIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range shardIDs {
		if _, ok := m.blobs[userID+"/"+id]; ok {
			delete(m.blobs, userID+"/"+id)
			n++
		}
	}
	return n, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	*httptest.Server
	blobs *memBlobRepository
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	users := &memUserRepository{users: make(map[string]domain.User)}
	blobs := &memBlobRepository{blobs: make(map[string][]byte)}
	logger := zerolog.Nop()

	router := NewRouter(Routes{
		Auth:        NewAuthHandler(service.NewAuthService(users, testSecret, 15*time.Minute, time.Hour), logger),
		Users:       NewUserHandler(service.NewUserService(users)),
		Blobs:       NewBlobHandler(service.NewBlobService(blobs, 64), logger),
		JWTSecret:   testSecret,
		Logger:      logger,
		AuthLimiter: limiter,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, blobs: blobs}
}

func (s *testServer) do(t *testing.T, method, path, token, contentType string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func (s *testServer) postJSON(t *testing.T, path, token string, v interface{}) (int, envelope) {
	t.Helper()
	body, _ := json.Marshal(v)
	resp, raw := s.do(t, http.MethodPost, path, token, "application/json", body)
	var env envelope
	json.Unmarshal(raw, &env)
	return resp.StatusCode, env
}

func (s *testServer) signUp(t *testing.T, email string) *domain.SignInResponse {
	t.Helper()
	creds := map[string]string{"email": email, "password": "account-password"}
	if code, env := s.postJSON(t, "/api/v1/auth/register", "", creds); code != http.StatusCreated {
		t.Fatalf("register: status = %d, error = %s", code, env.Error)
	}
	code, env := s.postJSON(t, "/api/v1/auth/login", "", creds)
	if code != http.StatusOK {
		t.Fatalf("login: status = %d, error = %s", code, env.Error)
	}
	var resp domain.SignInResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("login: bad response: %v", err)
	}
	return &resp
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	session := srv.signUp(t, "alice@example.com")

	resp, raw := srv.do(t, http.MethodGet, "/api/v1/users/me", session.AccessToken, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status = %d", resp.StatusCode)
	}
	var env envelope
	json.Unmarshal(raw, &env)
	var me domain.SessionUser
	json.Unmarshal(env.Data, &me)
	if me.ID != session.User.ID || me.Email != "alice@example.com" {
		t.Errorf("me = %+v", me)
	}
	if strings.Contains(string(raw), "password") {
		t.Error("me response exposes password hash")
	}

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/users/me", session.RefreshToken, "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me with refresh token: status = %d, want 401", resp.StatusCode)
	}

	code, env := srv.postJSON(t, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": session.RefreshToken})
	if code != http.StatusOK {
		t.Fatalf("refresh: status = %d, error = %s", code, env.Error)
	}

	if code, _ := srv.postJSON(t, "/api/v1/auth/logout", session.AccessToken, nil); code != http.StatusOK {
		t.Errorf("logout: status = %d", code)
	}
}

func TestAuthHandler_Errors(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.signUp(t, "bob@example.com")

	tests := []struct {
		name       string
		path       string
		body       interface{}
		wantStatus int
	}{
		{name: "duplicate email", path: "/api/v1/auth/register", body: map[string]string{"email": "bob@example.com", "password": "account-password"}, wantStatus: http.StatusConflict},
		{name: "invalid email", path: "/api/v1/auth/register", body: map[string]string{"email": "not-an-email", "password": "account-password"}, wantStatus: http.StatusBadRequest},
		{name: "short password", path: "/api/v1/auth/register", body: map[string]string{"email": "carol@example.com", "password": "short"}, wantStatus: http.StatusBadRequest},
		{name: "unknown field", path: "/api/v1/auth/register", body: map[string]string{"email": "carol@example.com", "password": "account-password", "role": "admin"}, wantStatus: http.StatusBadRequest},
		{name: "wrong password", path: "/api/v1/auth/login", body: map[string]string{"email": "bob@example.com", "password": "wrong-password"}, wantStatus: http.StatusUnauthorized},
		{name: "unknown account", path: "/api/v1/auth/login", body: map[string]string{"email": "nobody@example.com", "password": "account-password"}, wantStatus: http.StatusUnauthorized},
		{name: "garbage refresh token", path: "/api/v1/auth/refresh", body: map[string]string{"refresh_token": "garbage"}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := srv.postJSON(t, tt.path, "", tt.body)
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d (error %q)", code, tt.wantStatus, env.Error)
			}
			if env.Success {
				t.Error("error response marked as success")
			}
		})
	}
}

func TestBlobHandler(t *testing.T) {
	srv := newTestServer(t, nil)
	alice := srv.signUp(t, "alice@example.com")
	mallory := srv.signUp(t, "mallory@example.com")

	shardID := uuid.NewString()
	path := "/api/v1/blobs/" + alice.User.ID + "/" + shardID
	payload := []byte{0x00, 0xff, 0x10, 0x20}

	resp, _ := srv.do(t, http.MethodPut, path, alice.AccessToken, "application/octet-stream", payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("put: status = %d", resp.StatusCode)
	}

	resp, raw := srv.do(t, http.MethodGet, path, alice.AccessToken, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status = %d", resp.StatusCode)
	}
	if !bytes.Equal(raw, payload) {
		t.Errorf("get: body = %x, want %x", raw, payload)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("get: content type = %q", ct)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       []byte
		wantStatus int
	}{
		{name: "foreign read", method: http.MethodGet, path: path, token: mallory.AccessToken, wantStatus: http.StatusForbidden},
		{name: "foreign write", method: http.MethodPut, path: "/api/v1/blobs/" + alice.User.ID + "/" + uuid.NewString(), token: mallory.AccessToken, body: payload, wantStatus: http.StatusForbidden},
		{name: "no token", method: http.MethodGet, path: path, wantStatus: http.StatusUnauthorized},
		{name: "overwrite", method: http.MethodPut, path: path, token: alice.AccessToken, body: payload, wantStatus: http.StatusConflict},
		{name: "too large", method: http.MethodPut, path: "/api/v1/blobs/" + alice.User.ID + "/" + uuid.NewString(), token: alice.AccessToken, body: make([]byte, 65), wantStatus: http.StatusRequestEntityTooLarge},
		{name: "bad shard id", method: http.MethodPut, path: "/api/v1/blobs/" + alice.User.ID + "/not-a-uuid", token: alice.AccessToken, body: payload, wantStatus: http.StatusBadRequest},
		{name: "missing", method: http.MethodGet, path: "/api/v1/blobs/" + alice.User.ID + "/" + uuid.NewString(), token: alice.AccessToken, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := srv.do(t, tt.method, tt.path, tt.token, "application/octet-stream", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}

	code, _ := srv.postJSON(t, "/api/v1/blobs/delete", mallory.AccessToken, map[string][]string{"paths": {alice.User.ID + "/" + shardID}})
	if code != http.StatusForbidden {
		t.Errorf("foreign delete: status = %d, want 403", code)
	}

	code, env := srv.postJSON(t, "/api/v1/blobs/delete", alice.AccessToken, map[string][]string{"paths": {alice.User.ID + "/" + shardID}})
	if code != http.StatusOK {
		t.Fatalf("delete: status = %d, error = %s", code, env.Error)
	}
	var deleted domain.DeleteBlobsResponse
	json.Unmarshal(env.Data, &deleted)
	if deleted.Deleted != 1 {
		t.Errorf("delete: deleted = %d, want 1", deleted.Deleted)
	}
	if len(srv.blobs.blobs) != 0 {
		t.Errorf("%d blobs left after delete", len(srv.blobs.blobs))
	}
}

func TestAuthRateLimit(t *testing.T) {
	srv := newTestServer(t, middleware.NewRateLimiter(3, time.Minute))

	creds := map[string]string{"email": "nobody@example.com", "password": "account-password"}
	for i := 0; i < 3; i++ {
		if code, _ := srv.postJSON(t, "/api/v1/auth/login", "", creds); code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status = %d, want 401", i, code)
		}
	}
	if code, _ := srv.postJSON(t, "/api/v1/auth/login", "", creds); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", code)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, _ := srv.do(t, http.MethodGet, "/health", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
