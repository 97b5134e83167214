package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dperrin/gather/internal/auth"
	"github.com/dperrin/gather/internal/calendar"
	"github.com/dperrin/gather/internal/database"
	"github.com/dperrin/gather/internal/feed"
	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

type eventHandlerFixture struct {
	db     *sql.DB
	groups *store.GroupStore
	assoc  *store.AssociationStore
	author int64
}

func setupEventHandler(t *testing.T) (*EventHandler, *eventHandlerFixture) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	events := store.NewEventStore(db)
	groups := store.NewGroupStore(db)
	assoc := store.NewAssociationStore(db)
	activities := store.NewActivityStore(db)
	friends := store.NewFriendStore(db)

	resolver := calendar.NewResolver(events, assoc, groups, friends)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := feed.NewRouter(activities, assoc, logger)

	u, err := store.NewUserStore(db).Create("author@example.com", "Author")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	f := &eventHandlerFixture{db: db, groups: groups, assoc: assoc, author: u.ID}
	return NewEventHandler(events, assoc, resolver, router, logger), f
}

func postEvent(t *testing.T, h *EventHandler, userID int64, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", "/api/events", bytes.NewReader(raw))
	req = req.WithContext(auth.WithAuth(req.Context(), auth.AuthContext{UserID: userID}))
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestCreateEventWithGroups(t *testing.T) {
	h, f := setupEventHandler(t)

	g, err := f.groups.Create("Hikers", "", model.GroupPublic, f.author)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	rec := postEvent(t, h, f.author, map[string]any{
		"title":      "Trailhead Meetup",
		"start_time": "2026-09-01T10:00:00Z",
		"end_time":   "2026-09-01T12:00:00Z",
		"group_ids":  []int64{g.ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	var created model.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	groupIDs, err := f.assoc.GroupIDsForEvent(created.ID)
	if err != nil {
		t.Fatalf("group ids: %v", err)
	}
	if len(groupIDs) != 1 || groupIDs[0] != g.ID {
		t.Errorf("connected groups = %v, want [%d]", groupIDs, g.ID)
	}
}

func TestCreateEventUnknownGroupIs404(t *testing.T) {
	h, f := setupEventHandler(t)

	rec := postEvent(t, h, f.author, map[string]any{
		"title":      "Orphan Event",
		"start_time": "2026-09-01T10:00:00Z",
		"end_time":   "2026-09-01T12:00:00Z",
		"group_ids":  []int64{9999},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if !strings.Contains(rec.Body.String(), "group not found") {
		t.Errorf("body = %q, want group-not-found error", rec.Body.String())
	}
}
