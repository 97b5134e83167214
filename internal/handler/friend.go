package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dperrin/gather/internal/auth"
	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

type FriendHandler struct {
	friends *store.FriendStore
	users   *store.UserStore
	logger  *slog.Logger
}

func NewFriendHandler(fs *store.FriendStore, us *store.UserStore, logger *slog.Logger) *FriendHandler {
	return &FriendHandler{friends: fs, users: us, logger: logger}
}

type friendRequest struct {
	UserID int64 `json:"user_id"`
}

// Add handles POST /api/friends.
func (h *FriendHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req friendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.UserID == userID {
		writeError(w, http.StatusBadRequest, "cannot befriend yourself")
		return
	}

	other, err := h.users.GetByID(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if other == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	friendship, err := h.friends.Add(userID, req.UserID)
	if err != nil {
		h.logger.Error("add friend", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to add friend")
		return
	}

	writeJSON(w, http.StatusCreated, friendship)
}

// Remove handles DELETE /api/friends/{id}, where id is the other user.
func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.friends.Remove(userID, id); err != nil {
		h.logger.Error("remove friend", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to remove friend")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/friends.
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	ids, err := h.friends.FriendIDs(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list friends")
		return
	}

	friends := []model.User{}
	for _, id := range ids {
		user, err := h.users.GetByID(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load friend")
			return
		}
		if user != nil {
			friends = append(friends, *user)
		}
	}
	writeJSON(w, http.StatusOK, friends)
}
