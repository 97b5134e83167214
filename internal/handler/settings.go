package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dperrin/gather/internal/backup"
	"github.com/dperrin/gather/internal/store"
)

type SettingsHandler struct {
	settingsStore *store.SettingsStore
	backupManager *backup.Manager
}

func NewSettingsHandler(ss *store.SettingsStore, bm *backup.Manager) *SettingsHandler {
	return &SettingsHandler{settingsStore: ss, backupManager: bm}
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request, validate func(map[string]string) error, get func() (map[string]string, error)) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := validate(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for key, value := range req {
		if err := h.settingsStore.Set(key, value); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}

	settings, err := get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// GetFeed handles GET /api/settings/feed
func (h *SettingsHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStore.GetFeedSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateFeed handles PUT /api/settings/feed
func (h *SettingsHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, validateFeedSettings, h.settingsStore.GetFeedSettings)
}

func validateFeedSettings(settings map[string]string) error {
	for key, value := range settings {
		switch key {
		case "feed_edit_throttle_hours":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 168 {
				return fmt.Errorf("feed_edit_throttle_hours must be 0-168")
			}
		case "feed_per_page":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 100 {
				return fmt.Errorf("feed_per_page must be 1-100")
			}
		default:
			return fmt.Errorf("unknown setting: %s", key)
		}
	}
	return nil
}

// GetBackup handles GET /api/settings/backup
func (h *SettingsHandler) GetBackup(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStore.GetBackupSettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	// The salt is internal to the encryption scheme.
	delete(settings, "backup_passphrase_salt")
	writeJSON(w, http.StatusOK, settings)
}

// UpdateBackup handles PUT /api/settings/backup
func (h *SettingsHandler) UpdateBackup(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, validateBackupSettings, h.settingsStore.GetBackupSettings)
}

func validateBackupSettings(settings map[string]string) error {
	for key, value := range settings {
		switch key {
		case "backup_enabled":
			if value != "true" && value != "false" {
				return fmt.Errorf("backup_enabled must be \"true\" or \"false\"")
			}
		case "backup_interval_hours":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 168 {
				return fmt.Errorf("backup_interval_hours must be 1-168")
			}
		case "backup_retention_count":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 100 {
				return fmt.Errorf("backup_retention_count must be 1-100")
			}
		default:
			return fmt.Errorf("unknown setting: %s", key)
		}
	}
	return nil
}

// GetS3 handles GET /api/settings/s3. The secret key never leaves the
// server; only its presence is reported.
func (h *SettingsHandler) GetS3(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsStore.GetS3Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	if settings["s3_secret_key"] != "" {
		settings["s3_secret_key"] = "configured"
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateS3 handles PUT /api/settings/s3 and hot-reloads the backup
// manager's S3 client.
func (h *SettingsHandler) UpdateS3(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := validateS3Settings(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for key, value := range req {
		if err := h.settingsStore.Set(key, value); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}

	settings, err := h.settingsStore.GetS3Settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}

	h.backupManager.UpdateS3Config(backup.S3Config{
		Endpoint:  settings["s3_endpoint"],
		Bucket:    settings["s3_bucket"],
		Region:    settings["s3_region"],
		AccessKey: settings["s3_access_key"],
		SecretKey: settings["s3_secret_key"],
	})

	if settings["s3_secret_key"] != "" {
		settings["s3_secret_key"] = "configured"
	}
	writeJSON(w, http.StatusOK, settings)
}

func validateS3Settings(settings map[string]string) error {
	allowed := map[string]bool{
		"s3_endpoint":   true,
		"s3_bucket":     true,
		"s3_region":     true,
		"s3_access_key": true,
		"s3_secret_key": true,
	}
	for key := range settings {
		if !allowed[key] {
			return fmt.Errorf("unknown setting: %s", key)
		}
	}
	return nil
}
