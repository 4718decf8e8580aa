package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwierzba/autonajem/internal/api"
	"github.com/mwierzba/autonajem/internal/db"
	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/store"
)

func signedToken(t *testing.T, claims tokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("remote-secret"))
	require.NoError(t, err)
	return signed
}

func fakeAuthServer(t *testing.T, token string) *api.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var creds model.Credentials
			json.NewDecoder(r.Body).Decode(&creds)
			if creds.Password != "tajne" {
				http.Error(w, "bad credentials", http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"access_token": token})
		case "/auth/register":
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return api.New(server.URL)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoginPersistsSession(t *testing.T) {
	database := db.NewTestDB(t)
	token := signedToken(t, tokenClaims{
		UserID: 5, Username: "ala", Email: "ala@example.com", IsPermitted: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	client := fakeAuthServer(t, token)

	ctx := context.Background()
	m, err := NewManager(ctx, database, client, discardLogger())
	require.NoError(t, err)
	assert.False(t, m.IsLoggedIn())

	require.NoError(t, m.Login(ctx, model.Credentials{Login: "ala", Password: "tajne"}))
	assert.True(t, m.IsLoggedIn())
	assert.True(t, m.IsPermitted())
	assert.Equal(t, token, m.Token())

	user := m.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "ala", user.Username)
	assert.Equal(t, "ala@example.com", user.Email)

	select {
	case <-m.LoginSucceeded():
	default:
		t.Error("expected a login succeeded signal")
	}

	// A fresh manager over the same database restores the session.
	restored, err := NewManager(ctx, database, client, discardLogger())
	require.NoError(t, err)
	assert.True(t, restored.IsLoggedIn())
	assert.Equal(t, "ala", restored.CurrentUser().Username)
}

func TestLoginRejectedCredentials(t *testing.T) {
	database := db.NewTestDB(t)
	client := fakeAuthServer(t, "unused")

	ctx := context.Background()
	m, err := NewManager(ctx, database, client, discardLogger())
	require.NoError(t, err)

	err = m.Login(ctx, model.Credentials{Login: "ala", Password: "zle"})
	assert.True(t, api.IsUnauthorized(err))
	assert.False(t, m.IsLoggedIn())
}

func TestExpiredPersistedSessionDiscarded(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	expired := signedToken(t, tokenClaims{
		UserID: 5, Username: "ala",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	require.NoError(t, store.SaveSession(ctx, database, store.PersistedSession{
		Token: expired,
		User:  model.User{ID: 5, Username: "ala"},
	}))

	m, err := NewManager(ctx, database, fakeAuthServer(t, "unused"), discardLogger())
	require.NoError(t, err)
	assert.False(t, m.IsLoggedIn())
	assert.Empty(t, m.Token())

	persisted, err := store.LoadSession(ctx, database)
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestLogoutClearsSession(t *testing.T) {
	database := db.NewTestDB(t)
	token := signedToken(t, tokenClaims{UserID: 5, Username: "ala"})
	client := fakeAuthServer(t, token)

	ctx := context.Background()
	m, err := NewManager(ctx, database, client, discardLogger())
	require.NoError(t, err)
	require.NoError(t, m.Login(ctx, model.Credentials{Login: "ala", Password: "tajne"}))

	require.NoError(t, m.Logout(ctx))
	assert.False(t, m.IsLoggedIn())
	assert.Empty(t, m.Token())

	persisted, err := store.LoadSession(ctx, database)
	require.NoError(t, err)
	assert.Nil(t, persisted)
}

func TestPromptCoalescing(t *testing.T) {
	database := db.NewTestDB(t)
	m, err := NewManager(context.Background(), database, fakeAuthServer(t, "unused"), discardLogger())
	require.NoError(t, err)

	// A burst of rejected requests raises exactly one prompt.
	m.RequestLoginPrompt()
	m.RequestLoginPrompt()
	m.RequestLoginPrompt()

	signals := 0
	for {
		select {
		case <-m.LoginRequired():
			signals++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 1, signals)

	// Dismissing the prompt re-arms it.
	m.PromptClosed()
	m.RequestLoginPrompt()
	select {
	case <-m.LoginRequired():
	default:
		t.Error("expected a new prompt after dismissal")
	}
}

func TestInvalidateDropsStaleSession(t *testing.T) {
	database := db.NewTestDB(t)
	token := signedToken(t, tokenClaims{UserID: 5, Username: "ala"})
	client := fakeAuthServer(t, token)

	ctx := context.Background()
	m, err := NewManager(ctx, database, client, discardLogger())
	require.NoError(t, err)
	require.NoError(t, m.Login(ctx, model.Credentials{Login: "ala", Password: "tajne"}))

	m.Invalidate(ctx)
	assert.False(t, m.IsLoggedIn())
}
