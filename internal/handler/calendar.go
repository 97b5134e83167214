package handler

import (
	"log/slog"
	"net/http"

	"github.com/dperrin/gather/internal/auth"
	"github.com/dperrin/gather/internal/calendar"
	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/recurrence"
	"github.com/dperrin/gather/internal/store"
)

type CalendarHandler struct {
	events   *store.EventStore
	resolver *calendar.Resolver
	logger   *slog.Logger
}

func NewCalendarHandler(es *store.EventStore, resolver *calendar.Resolver, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{events: es, resolver: resolver, logger: logger}
}

// calendarEntry is one event on a calendar, with its occurrences inside the
// requested window when the event recurs.
type calendarEntry struct {
	Event       model.Event          `json:"event"`
	Occurrences []occurrenceResponse `json:"occurrences,omitempty"`
}

func (h *CalendarHandler) listScoped(w http.ResponseWriter, r *http.Request, scope calendar.Scope) {
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

	q := store.EventQuery{Start: start, End: end}
	if err := h.resolver.ApplyScope(&q, scope); err != nil {
		h.logger.Error("apply calendar scope", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve calendar")
		return
	}

	events, err := h.events.List(q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	entries := []calendarEntry{}
	for _, event := range events {
		entry := calendarEntry{Event: event}
		if event.RRule != "" {
			rule, err := recurrence.Parse(event.RRule)
			if err != nil {
				h.logger.Error("stored rrule failed to parse", "event_id", event.ID, "error", err)
				continue
			}
			exdates, err := recurrence.ParseExdates(event.Exdates)
			if err != nil {
				h.logger.Error("stored exdates failed to parse", "event_id", event.ID, "error", err)
				continue
			}
			for _, occ := range recurrence.Expand(rule, exdates, event.StartTime, event.EndTime, start, end) {
				entry.Occurrences = append(entry.Occurrences, occurrenceResponse{Start: occ.Start, End: occ.End})
			}
		}
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, entries)
}

// UserCalendar handles GET /api/users/{id}/calendar: the displayed user's
// own events, their friends' published events, and their groups' events.
// Viewers see the displayed user's private events only on their own calendar.
func (h *CalendarHandler) UserCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	scope := calendar.Scope{
		DisplayedUser: &id,
		Viewer:        auth.UserID(r.Context()),
	}
	h.listScoped(w, r, scope)
}

// GroupCalendar handles GET /api/groups/{id}/calendar.
func (h *CalendarHandler) GroupCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	scope := calendar.Scope{
		Groups: []int64{id},
		Viewer: auth.UserID(r.Context()),
	}
	h.listScoped(w, r, scope)
}

// MyCalendar handles GET /api/calendar, the viewer's own calendar.
func (h *CalendarHandler) MyCalendar(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	scope := calendar.Scope{
		DisplayedUser: &userID,
		Viewer:        userID,
	}
	h.listScoped(w, r, scope)
}
