package vault

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"vaultx/internal/crypto"
	"vaultx/internal/domain"
	"vaultx/internal/session"

	"github.com/rs/zerolog"
)

const (
	testPrimary = "482913"
	testDuress  = "001122"
	testWrong   = "999999"
)

var testUser = &domain.SessionUser{ID: "user-1", Email: "user@example.com"}

type storageError struct {
	retry bool
}

func (e *storageError) Error() string   { return "storage unavailable" }
func (e *storageError) Retryable() bool { return e.retry }

type mockBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	puts      int
	failPutAt int
	// lostPutAt stores the shard of that Put and still reports a failure.
	lostPutAt int
	onPut     func(n int)
	onDelete  func()
	getErrs   map[string][]error
}

func newMockBlobStore() *mockBlobStore {
	return &mockBlobStore{
		blobs:   make(map[string][]byte),
		getErrs: make(map[string][]error),
	}
}

func (m *mockBlobStore) Put(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	m.puts++
	n := m.puts
	if n == m.failPutAt {
		m.mu.Unlock()
		return &storageError{retry: false}
	}
	m.blobs[path] = append([]byte(nil), data...)
	if n == m.lostPutAt {
		m.mu.Unlock()
		return &storageError{retry: false}
	}
	hook := m.onPut
	m.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

func (m *mockBlobStore) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if errs := m.getErrs[path]; len(errs) > 0 {
		m.getErrs[path] = errs[1:]
		return nil, errs[0]
	}
	data, ok := m.blobs[path]
	if !ok {
		return nil, &storageError{retry: false}
	}
	return append([]byte(nil), data...), nil
}

func (m *mockBlobStore) Delete(_ context.Context, paths []string) error {
	m.mu.Lock()
	for _, p := range paths {
		delete(m.blobs, p)
	}
	hook := m.onDelete
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (m *mockBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func (m *mockBlobStore) paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for p := range m.blobs {
		out = append(out, p)
	}
	return out
}

type mockMetadataStore struct {
	mu   sync.Mutex
	data map[string]*domain.VaultMetadata
}

func newMockMetadataStore() *mockMetadataStore {
	return &mockMetadataStore{data: make(map[string]*domain.VaultMetadata)}
}

func (m *mockMetadataStore) Load(userID string) (*domain.VaultMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md, ok := m.data[userID]
	if !ok {
		return nil, nil
	}
	c := *md
	c.Documents = append([]*domain.DocumentRecord(nil), md.Documents...)
	c.DecoyDocuments = append([]*domain.DocumentRecord(nil), md.DecoyDocuments...)
	return &c, nil
}

func (m *mockMetadataStore) Save(userID string, md *domain.VaultMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = md
	return nil
}

func (m *mockMetadataStore) Delete(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

type mockIdentity struct {
	user      *domain.SessionUser
	signedOut bool
}

func (m *mockIdentity) SignIn(_ context.Context, email, secret string) (*domain.SessionUser, error) {
	if email != m.user.Email || secret != "account-password" {
		return nil, errors.New("invalid credentials")
	}
	return m.user, nil
}

func (m *mockIdentity) GetSession(context.Context) (*domain.SessionUser, error) {
	if m.signedOut {
		return nil, nil
	}
	return m.user, nil
}

func (m *mockIdentity) SignOut(context.Context) error {
	m.signedOut = true
	return nil
}

type mockGate struct {
	result bool
	calls  int
}

func (m *mockGate) Authenticate(context.Context, string) (bool, error) {
	m.calls++
	return m.result, nil
}

type mockSecureStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mockSecureStore) Save(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *mockSecureStore) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

func (m *mockSecureStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fixture struct {
	engine   *Engine
	session  *session.Session
	blobs    *mockBlobStore
	metadata *mockMetadataStore
	identity *mockIdentity
	gate     *mockGate
	secure   *mockSecureStore
}

func testConfig() Config {
	return Config{
		ShardCount: 3,
		Retry: RetryPolicy{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

// newFixture returns an engine that is signed in, set up and VAULT_LOCKED.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		blobs:    newMockBlobStore(),
		metadata: newMockMetadataStore(),
		identity: &mockIdentity{user: testUser},
		gate:     &mockGate{result: true},
		secure:   &mockSecureStore{data: make(map[string][]byte)},
	}

	sess, err := session.New(f.secure, session.Config{
		KDF: crypto.KDFParams{Iterations: crypto.MinIterations},
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	f.session = sess

	f.engine, err = NewEngine(sess, Collaborators{
		Identity:  f.identity,
		Blobs:     f.blobs,
		Metadata:  f.metadata,
		Biometric: f.gate,
	}, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if _, err := f.engine.SignIn(context.Background(), testUser.Email, "account-password"); err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if err := f.engine.Setup([]byte(testPrimary), []byte(testDuress)); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	return f
}

func (f *fixture) unlock(t *testing.T, credential string) {
	t.Helper()
	if err := f.engine.Unlock([]byte(credential)); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
}

func (f *fixture) upload(t *testing.T, name, content string) *DocumentInfo {
	t.Helper()
	info, err := f.engine.Upload(context.Background(), name, "text/plain", strings.NewReader(content), nil)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	return info
}
