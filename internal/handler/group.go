package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dperrin/gather/internal/auth"
	"github.com/dperrin/gather/internal/feed"
	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

type GroupHandler struct {
	groups *store.GroupStore
	assoc  *store.AssociationStore
	events *store.EventStore
	router *feed.Router
	logger *slog.Logger
}

func NewGroupHandler(gs *store.GroupStore, as *store.AssociationStore, es *store.EventStore, router *feed.Router, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{groups: gs, assoc: as, events: es, router: router, logger: logger}
}

type groupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

func (h *GroupHandler) parseGroup(w http.ResponseWriter, r *http.Request) (*groupRequest, bool) {
	var req groupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return nil, false
	}

	switch req.Visibility {
	case "":
		req.Visibility = model.GroupPublic
	case model.GroupPublic, model.GroupPrivate, model.GroupHidden:
	default:
		writeError(w, http.StatusBadRequest, "visibility must be public, private, or hidden")
		return nil, false
	}

	return &req, true
}

// Create handles POST /api/groups. The creator is enrolled as admin.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	req, ok := h.parseGroup(w, r)
	if !ok {
		return
	}

	group, err := h.groups.Create(req.Name, req.Description, req.Visibility, userID)
	if err != nil {
		h.logger.Error("create group", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create group")
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

// List handles GET /api/groups. Hidden groups are excluded; membership in a
// hidden group is the only way to reach it.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// Get handles GET /api/groups/{id}.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	group, err := h.groups.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	writeJSON(w, http.StatusOK, group)
}

// requireAdmin loads the group and checks the viewer is one of its admins.
func (h *GroupHandler) requireAdmin(w http.ResponseWriter, r *http.Request, groupID int64) bool {
	userID := auth.UserID(r.Context())
	member, err := h.groups.GetMember(groupID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return false
	}
	if member == nil || member.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "group admin required")
		return false
	}
	return true
}

// Update handles PUT /api/groups/{id}.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.groups.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	if !h.requireAdmin(w, r, id) {
		return
	}

	req, ok := h.parseGroup(w, r)
	if !ok {
		return
	}

	group, err := h.groups.Update(id, req.Name, req.Description, req.Visibility)
	if err != nil {
		h.logger.Error("update group", "group_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update group")
		return
	}

	writeJSON(w, http.StatusOK, group)
}

// Delete handles DELETE /api/groups/{id}.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.groups.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	if !h.requireAdmin(w, r, id) {
		return
	}

	if err := h.groups.Delete(id); err != nil {
		h.logger.Error("delete group", "group_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete group")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Join handles POST /api/groups/{id}/members.
func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	group, err := h.groups.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	member, err := h.groups.AddMember(id, userID, model.RoleMember)
	if err != nil {
		h.logger.Error("join group", "group_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join group")
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

// Leave handles DELETE /api/groups/{id}/members.
func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.groups.RemoveMember(id, userID); err != nil {
		h.logger.Error("leave group", "group_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to leave group")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /api/groups/{id}/members.
func (h *GroupHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	members, err := h.groups.ListMembers(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.GroupMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// ConnectEvent handles POST /api/groups/{id}/events/{event_id}. Only the
// event's author can share it, and only into groups they belong to.
//
// Feed records follow event saves, not connections: the save fanout is
// re-run here, but the duplicate-create and edit-throttle guards still
// apply, so a just-created event surfaces in the group's feed on its next
// save rather than at connect time.
func (h *GroupHandler) ConnectEvent(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	groupID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	eventID, err := parsePathInt(r, "event_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := h.events.GetByID(eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if event.AuthorID != userID {
		writeError(w, http.StatusForbidden, "only the author can share this event")
		return
	}

	member, err := h.groups.GetMember(groupID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check membership")
		return
	}
	if member == nil {
		writeError(w, http.StatusForbidden, "group membership required")
		return
	}

	if err := h.assoc.Connect(eventID, groupID); err != nil {
		switch {
		case errors.Is(err, store.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "group not found")
		case errors.Is(err, store.ErrEventNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		default:
			h.logger.Error("connect event", "event_id", eventID, "group_id", groupID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to connect event")
		}
		return
	}

	if err := h.router.EventSaved(event); err != nil {
		h.logger.Error("record share activity", "event_id", eventID, "error", err)
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"event_id": eventID, "group_id": groupID})
}

// DisconnectEvent handles DELETE /api/groups/{id}/events/{event_id}.
func (h *GroupHandler) DisconnectEvent(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	groupID, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid group id")
		return
	}
	eventID, err := parsePathInt(r, "event_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := h.events.GetByID(eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event != nil && event.AuthorID != userID {
		member, err := h.groups.GetMember(groupID, userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check membership")
			return
		}
		if member == nil || member.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "author or group admin required")
			return
		}
	}

	if err := h.assoc.Disconnect(eventID, groupID); err != nil {
		switch {
		case errors.Is(err, store.ErrGroupNotFound):
			writeError(w, http.StatusNotFound, "group not found")
		case errors.Is(err, store.ErrEventNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		case errors.Is(err, store.ErrEventNotFoundForGroup):
			writeError(w, http.StatusNotFound, "event not connected to group")
		default:
			h.logger.Error("disconnect event", "event_id", eventID, "group_id", groupID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to disconnect event")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListEvents handles GET /api/groups/{id}/events. By default it returns
// upcoming published events; ?include_past=true widens the window.
func (h *GroupHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	group, err := h.groups.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	opts := store.EventIDOptions{
		IncludePast: r.URL.Query().Get("include_past") == "true",
		Statuses:    []string{model.EventStatusPublish},
	}
	ids, err := h.assoc.EventIDsForGroup(id, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list group events")
		return
	}

	events := []model.Event{}
	if len(ids) > 0 {
		events, err = h.events.List(store.EventQuery{IDs: ids})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load events")
			return
		}
	}
	writeJSON(w, http.StatusOK, events)
}
