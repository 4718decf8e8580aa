package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mwierzba/autonajem/internal/model"
)

// sessionKey is the fixed settings key the session is persisted under.
const sessionKey = "session"

// PersistedSession is the JSON blob stored locally between runs.
type PersistedSession struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// SaveSession replaces the persisted session wholesale.
func SaveSession(ctx context.Context, db *sql.DB, s PersistedSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return SetSetting(ctx, db, sessionKey, string(data))
}

// LoadSession reads the persisted session. Absence or malformed stored data
// is treated as "no session", never as a hard error.
func LoadSession(ctx context.Context, db *sql.DB) (*PersistedSession, error) {
	raw, err := GetSetting(ctx, db, sessionKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var s PersistedSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.Token == "" {
		return nil, nil
	}
	return &s, nil
}

// ClearSession removes the persisted session.
func ClearSession(ctx context.Context, db *sql.DB) error {
	return DeleteSetting(ctx, db, sessionKey)
}
