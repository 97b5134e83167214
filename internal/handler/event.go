package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dperrin/gather/internal/auth"
	"github.com/dperrin/gather/internal/calendar"
	"github.com/dperrin/gather/internal/feed"
	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/recurrence"
	"github.com/dperrin/gather/internal/store"
)

type EventHandler struct {
	events   *store.EventStore
	assoc    *store.AssociationStore
	resolver *calendar.Resolver
	router   *feed.Router
	logger   *slog.Logger
}

func NewEventHandler(es *store.EventStore, as *store.AssociationStore, resolver *calendar.Resolver, router *feed.Router, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: es, assoc: as, resolver: resolver, router: router, logger: logger}
}

type eventRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	AllDay      bool    `json:"all_day"`
	Location    string  `json:"location"`
	Status      string  `json:"status"`
	RRule       string  `json:"rrule"`
	Exdates     string  `json:"exdates"`
	GroupIDs    []int64 `json:"group_ids"`
}

func (h *EventHandler) parseAndValidate(w http.ResponseWriter, r *http.Request) (*eventRequest, time.Time, time.Time, bool) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, time.Time{}, time.Time{}, false
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return nil, time.Time{}, time.Time{}, false
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_time must be RFC3339 format")
		return nil, time.Time{}, time.Time{}, false
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_time must be RFC3339 format")
		return nil, time.Time{}, time.Time{}, false
	}

	if !startTime.Before(endTime) {
		writeError(w, http.StatusBadRequest, "start_time must be before end_time")
		return nil, time.Time{}, time.Time{}, false
	}

	switch req.Status {
	case "", model.EventStatusPublish, model.EventStatusPrivate, model.EventStatusDraft:
	default:
		writeError(w, http.StatusBadRequest, "status must be publish, private, or draft")
		return nil, time.Time{}, time.Time{}, false
	}

	if req.RRule != "" {
		if _, err := recurrence.Parse(req.RRule); err != nil {
			writeError(w, http.StatusBadRequest, "invalid recurrence rule")
			return nil, time.Time{}, time.Time{}, false
		}
	}
	if req.Exdates != "" {
		if _, err := recurrence.ParseExdates(req.Exdates); err != nil {
			writeError(w, http.StatusBadRequest, "invalid exdates")
			return nil, time.Time{}, time.Time{}, false
		}
	}

	return &req, startTime, endTime, true
}

// Create handles POST /api/events. Connecting the event to groups and
// recording feed activity happen in the same request so a client never sees
// a created event without its group links.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	req, startTime, endTime, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	event, err := h.events.Create(model.Event{
		AuthorID:    userID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   startTime,
		EndTime:     endTime,
		AllDay:      req.AllDay,
		Location:    req.Location,
		Status:      req.Status,
		RRule:       req.RRule,
		Exdates:     req.Exdates,
	})
	if err != nil {
		h.logger.Error("create event", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	for _, groupID := range req.GroupIDs {
		if err := h.assoc.Connect(event.ID, groupID); err != nil {
			switch {
			case errors.Is(err, store.ErrGroupNotFound):
				writeError(w, http.StatusNotFound, "group not found")
			case errors.Is(err, store.ErrEventNotFound):
				writeError(w, http.StatusNotFound, "event not found")
			default:
				h.logger.Error("connect event to group", "event_id", event.ID, "group_id", groupID, "error", err)
				writeError(w, http.StatusInternalServerError, "failed to connect event")
			}
			return
		}
	}

	if err := h.router.EventSaved(event); err != nil {
		h.logger.Error("record event activity", "event_id", event.ID, "error", err)
	}

	writeJSON(w, http.StatusCreated, event)
}

// List handles GET /api/events. Optional group_id and user_id query
// parameters narrow the listing through the calendar scope resolver; the
// scope is applied before the query runs, never after.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	start, err := parseFlexibleTime(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}
	end, err := parseFlexibleTime(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}

	scope := calendar.Scope{Viewer: auth.UserID(r.Context())}
	if v := r.URL.Query().Get("group_id"); v != "" {
		groupID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid group_id")
			return
		}
		scope.Groups = []int64{groupID}
	}
	if v := r.URL.Query().Get("user_id"); v != "" {
		userID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		scope.DisplayedUser = &userID
	}

	q := store.EventQuery{
		Start:    start,
		End:      end,
		Statuses: []string{model.EventStatusPublish},
	}
	if err := h.resolver.ApplyScope(&q, scope); err != nil {
		h.logger.Error("apply event scope", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve scope")
		return
	}

	events, err := h.events.List(q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Get handles GET /api/events/{id}.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	event, err := h.events.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	groupIDs, err := h.assoc.GroupIDsForEvent(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load event groups")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"event":     event,
		"group_ids": groupIDs,
	})
}

// Update handles PUT /api/events/{id}. Only the author may update.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.events.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if existing.AuthorID != userID {
		writeError(w, http.StatusForbidden, "only the author can update this event")
		return
	}

	req, startTime, endTime, ok := h.parseAndValidate(w, r)
	if !ok {
		return
	}

	updated := *existing
	updated.Title = req.Title
	updated.Description = req.Description
	updated.StartTime = startTime
	updated.EndTime = endTime
	updated.AllDay = req.AllDay
	updated.Location = req.Location
	if req.Status != "" {
		updated.Status = req.Status
	}
	updated.RRule = req.RRule
	updated.Exdates = req.Exdates

	event, err := h.events.Update(updated)
	if err != nil {
		h.logger.Error("update event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	if err := h.router.EventSaved(event); err != nil {
		h.logger.Error("record event activity", "event_id", id, "error", err)
	}

	writeJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/events/{id}. Only the author may delete.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.events.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if existing.AuthorID != userID {
		writeError(w, http.StatusForbidden, "only the author can delete this event")
		return
	}

	if err := h.events.Delete(id); err != nil {
		h.logger.Error("delete event", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type occurrenceResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Occurrences handles GET /api/events/{id}/occurrences, expanding a
// recurring event's rule within the requested window. A one-off event yields
// its own span when it overlaps the window.
func (h *EventHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	start, err := parseFlexibleTime(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}
	end, err := parseFlexibleTime(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}

	event, err := h.events.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	occurrences := []occurrenceResponse{}
	if event.RRule == "" {
		if event.StartTime.Before(end) && event.EndTime.After(start) {
			occurrences = append(occurrences, occurrenceResponse{Start: event.StartTime, End: event.EndTime})
		}
		writeJSON(w, http.StatusOK, occurrences)
		return
	}

	rule, err := recurrence.Parse(event.RRule)
	if err != nil {
		h.logger.Error("stored rrule failed to parse", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "invalid recurrence rule")
		return
	}
	exdates, err := recurrence.ParseExdates(event.Exdates)
	if err != nil {
		h.logger.Error("stored exdates failed to parse", "event_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "invalid exdates")
		return
	}

	for _, occ := range recurrence.Expand(rule, exdates, event.StartTime, event.EndTime, start, end) {
		occurrences = append(occurrences, occurrenceResponse{Start: occ.Start, End: occ.End})
	}
	writeJSON(w, http.StatusOK, occurrences)
}
