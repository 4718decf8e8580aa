// Package session tracks the single operator session: the bearer token and
// user identity obtained from the remote API, persisted locally so a restart
// does not log the operator out.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/store"
)

// tokenClaims is the claim shape the remote API signs into its tokens. The
// token is verified by the remote side on every request; locally it is only
// decoded for the identity fields and the expiry.
type tokenClaims struct {
	UserID      int64  `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsPermitted bool   `json:"isPermitted"`
	jwt.RegisteredClaims
}

// Manager owns the current session and the login prompt lifecycle.
type Manager struct {
	db     *sql.DB
	client *api.Client
	log    *slog.Logger

	mu         sync.Mutex
	current    *store.PersistedSession
	promptOpen bool

	loginRequired  chan struct{}
	loginSucceeded chan struct{}
}

// NewManager restores any persisted session and returns a manager. An expired
// persisted token is discarded silently.
func NewManager(ctx context.Context, db *sql.DB, client *api.Client, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		db:             db,
		client:         client,
		log:            log,
		loginRequired:  make(chan struct{}, 1),
		loginSucceeded: make(chan struct{}, 1),
	}

	persisted, err := store.LoadSession(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	if persisted != nil {
		if expired(persisted.Token) {
			log.Info("discarding expired persisted session", "username", persisted.User.Username)
			if err := store.ClearSession(ctx, db); err != nil {
				return nil, fmt.Errorf("clearing expired session: %w", err)
			}
		} else {
			m.current = persisted
		}
	}
	return m, nil
}

// Login authenticates against the remote API, decodes the identity out of the
// returned token and persists the session.
func (m *Manager) Login(ctx context.Context, creds model.Credentials) error {
	resp, err := m.client.Login(ctx, creds)
	if err != nil {
		return err
	}

	user, err := decodeIdentity(resp.AccessToken)
	if err != nil {
		return fmt.Errorf("decoding access token: %w", err)
	}

	persisted := store.PersistedSession{Token: resp.AccessToken, User: *user}
	if err := store.SaveSession(ctx, m.db, persisted); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	m.mu.Lock()
	m.current = &persisted
	m.promptOpen = false
	m.mu.Unlock()

	m.log.Info("logged in", "username", user.Username)
	select {
	case m.loginSucceeded <- struct{}{}:
	default:
	}
	return nil
}

// Register creates an account on the remote API. It does not log the new
// account in; the operator logs in afterwards.
func (m *Manager) Register(ctx context.Context, reg model.Registration) error {
	return m.client.Register(ctx, reg)
}

// Logout drops the session locally. The remote token stays valid until it
// expires; there is no revocation endpoint.
func (m *Manager) Logout(ctx context.Context) error {
	if err := store.ClearSession(ctx, m.db); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	m.log.Info("logged out")
	return nil
}

// Invalidate drops the session without touching the remote API, used when a
// request came back 401 and the token is known stale.
func (m *Manager) Invalidate(ctx context.Context) {
	if err := store.ClearSession(ctx, m.db); err != nil {
		m.log.Error("clearing stale session", "error", err)
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

// Token returns the current bearer token, or "" when logged out. Suitable as
// an api.TokenSource.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.Token
}

// CurrentUser returns the logged in user, or nil.
func (m *Manager) CurrentUser() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	user := m.current.User
	return &user
}

// IsLoggedIn reports whether a session is active.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && !expired(m.current.Token)
}

// IsPermitted reports whether the logged in user has the elevated flag.
func (m *Manager) IsPermitted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.User.IsPermitted
}

// RequestLoginPrompt asks for the login prompt to be shown. While a prompt is
// already open further requests are dropped, so a burst of rejected requests
// raises at most one prompt.
func (m *Manager) RequestLoginPrompt() {
	m.mu.Lock()
	if m.promptOpen {
		m.mu.Unlock()
		return
	}
	m.promptOpen = true
	m.mu.Unlock()

	select {
	case m.loginRequired <- struct{}{}:
	default:
	}
}

// PromptClosed re-arms the prompt after it was dismissed without a login.
func (m *Manager) PromptClosed() {
	m.mu.Lock()
	m.promptOpen = false
	m.mu.Unlock()
}

// LoginRequired signals that a login prompt should be shown.
func (m *Manager) LoginRequired() <-chan struct{} { return m.loginRequired }

// LoginSucceeded signals that a login just completed.
func (m *Manager) LoginSucceeded() <-chan struct{} { return m.loginSucceeded }

// decodeIdentity extracts the user identity from an unverified token. The
// remote API is the issuer and the verifier; we only read the claims.
func decodeIdentity(token string) (*model.User, error) {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}
	return &model.User{
		ID:          claims.UserID,
		Username:    claims.Username,
		Email:       claims.Email,
		IsPermitted: claims.IsPermitted,
	}, nil
}

// expired reports whether the token carries an exp claim in the past. Tokens
// without an exp claim are kept; the remote API rejects them if it disagrees.
func expired(token string) bool {
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return true
	}
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now())
}
