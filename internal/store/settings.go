// Package store persists the front-end's local state: the current session
// under a fixed key and the image cache-buster counter. All catalog records
// live on the remote API and are never written here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
)

// GetSetting returns the value stored under key, or "" when absent.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value wholesale.
func SetSetting(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storing setting %q: %w", key, err)
	}
	return nil
}

// DeleteSetting removes the value stored under key, if any.
func DeleteSetting(ctx context.Context, db *sql.DB, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting setting %q: %w", key, err)
	}
	return nil
}

// imageVersionKey holds the cache-buster counter bumped after every
// successful photo upload.
const imageVersionKey = "image_version"

// ImageVersion returns the current cache-buster counter. A missing or
// malformed value counts as 0.
func ImageVersion(ctx context.Context, db *sql.DB) (int64, error) {
	raw, err := GetSetting(ctx, db, imageVersionKey)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, nil
	}
	return version, nil
}

// BumpImageVersion increments the cache-buster counter and returns the new
// value.
func BumpImageVersion(ctx context.Context, db *sql.DB) (int64, error) {
	version, err := ImageVersion(ctx, db)
	if err != nil {
		return 0, err
	}
	version++
	if err := SetSetting(ctx, db, imageVersionKey, strconv.FormatInt(version, 10)); err != nil {
		return 0, err
	}
	return version, nil
}
