package remote

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"vaultx/internal/domain"
)

// refreshMargin is how long before expiry an access token is refreshed.
const refreshMargin = 30 * time.Second

// IdentityClient signs in against the server's auth routes. Tokens are kept
// in memory only.
type IdentityClient struct {
	t   *transport
	now func() time.Time

	mu           sync.Mutex
	user         *domain.SessionUser
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func NewIdentityClient(baseURL string, opts ...Option) (*IdentityClient, error) {
	t, err := newTransport(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return &IdentityClient{t: t, now: time.Now}, nil
}

// Register creates an account. It does not sign in.
func (c *IdentityClient) Register(ctx context.Context, email, password string) error {
	req := &domain.RegisterRequest{Email: email, Password: password}
	return c.t.doJSON(ctx, http.MethodPost, "/auth/register", "", req, nil)
}

func (c *IdentityClient) SignIn(ctx context.Context, email, secret string) (*domain.SessionUser, error) {
	var resp domain.SignInResponse
	req := &domain.SignInRequest{Email: email, Password: secret}
	if err := c.t.doJSON(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil || resp.AccessToken == "" {
		return nil, errors.New("incomplete sign-in response")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = resp.User
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.expiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)

	u := *resp.User
	return &u, nil
}

// GetSession confirms the held token with the server. It returns nil, nil
// when no session is held or the server no longer accepts it.
func (c *IdentityClient) GetSession(ctx context.Context) (*domain.SessionUser, error) {
	token, err := c.AccessToken(ctx)
	if errors.Is(err, ErrNotSignedIn) || errors.Is(err, ErrUnauthorized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user domain.SessionUser
	err = c.t.doJSON(ctx, http.MethodGet, "/users/me", token, nil, &user)
	if errors.Is(err, ErrUnauthorized) {
		c.clear()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut tells the server and forgets the tokens. The tokens are forgotten
// even if the server call fails.
func (c *IdentityClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()
	defer c.clear()

	if token == "" {
		return nil
	}
	return c.t.doJSON(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// AccessToken returns a valid access token, refreshing it when it is about
// to expire.
func (c *IdentityClient) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken == "" {
		return "", ErrNotSignedIn
	}
	if c.now().Add(refreshMargin).Before(c.expiresAt) {
		return c.accessToken, nil
	}
	if c.refreshToken == "" {
		return "", ErrNotSignedIn
	}

	var resp domain.TokenResponse
	req := &domain.RefreshTokenRequest{RefreshToken: c.refreshToken}
	if err := c.t.doJSON(ctx, http.MethodPost, "/auth/refresh", "", req, &resp); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			c.clearLocked()
		}
		return "", err
	}

	c.accessToken = resp.AccessToken
	c.expiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

func (c *IdentityClient) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *IdentityClient) clearLocked() {
	c.user = nil
	c.accessToken = ""
	c.refreshToken = ""
	c.expiresAt = time.Time{}
}
