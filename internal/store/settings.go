package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Well-known settings keys, grouped by the surface that edits them.
var feedKeys = []string{
	"feed_edit_throttle_hours",
	"feed_per_page",
}

var backupKeys = []string{
	"backup_enabled",
	"backup_interval_hours",
	"backup_retention_count",
	"backup_passphrase_salt",
}

var s3Keys = []string{
	"s3_endpoint",
	"s3_bucket",
	"s3_region",
	"s3_access_key",
	"s3_secret_key",
}

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (s *SettingsStore) getKeys(keys []string) (map[string]string, error) {
	settings := make(map[string]string)
	for _, key := range keys {
		var value string
		err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get setting %q: %w", key, err)
		}
		settings[key] = value
	}
	return settings, nil
}

func (s *SettingsStore) GetFeedSettings() (map[string]string, error) {
	return s.getKeys(feedKeys)
}

func (s *SettingsStore) GetBackupSettings() (map[string]string, error) {
	return s.getKeys(backupKeys)
}

func (s *SettingsStore) GetS3Settings() (map[string]string, error) {
	return s.getKeys(s3Keys)
}
