package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dperrin/gather/internal/backup"
	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

type BackupHandler struct {
	manager *backup.Manager
	backups *store.BackupStore
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, bs *store.BackupStore, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, backups: bs, logger: logger}
}

// Status handles GET /api/backups/status
func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

// List handles GET /api/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, backups)
}

type passphraseRequest struct {
	Passphrase string `json:"passphrase"`
}

// RunNow handles POST /api/backups. The passphrase may be omitted once the
// manager has a cached key from a previous run.
func (h *BackupHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	var req passphraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Passphrase == "" && !h.manager.HasCachedKey() {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	id, err := h.manager.RunNow(r.Context(), req.Passphrase)
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}

	b, err := h.backups.GetByID(id)
	if err != nil || b == nil {
		writeError(w, http.StatusInternalServerError, "backup record missing")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Restore handles POST /api/backups/{id}/restore. On success the process
// replaces its database and exits for the supervisor to restart.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req passphraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Passphrase == "" {
		writeError(w, http.StatusBadRequest, "passphrase is required")
		return
	}

	if err := h.manager.Restore(r.Context(), id, req.Passphrase); err != nil {
		h.logger.Error("restore backup", "backup_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "restore failed")
		return
	}

	// Unreachable on success: Restore exits the process.
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// Download handles GET /api/backups/{id}/download, streaming the encrypted
// archive as stored.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	b, err := h.backups.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get backup")
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}

	body, size, err := h.manager.Download(r.Context(), id)
	if err != nil {
		h.logger.Error("download backup", "backup_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "download failed")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.Filename))
	if size > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	}
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Error("stream backup", "backup_id", id, "error", err)
	}
}
