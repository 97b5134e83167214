package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dperrin/gather/internal/database"
	"github.com/dperrin/gather/internal/model"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// Ensure foreign keys are enforced (modernc/sqlite may not honor DSN param for :memory:)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sql.DB, email string) int64 {
	t.Helper()
	u, err := NewUserStore(db).Create(email, "Test User")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

func seedGroup(t *testing.T, db *sql.DB, name string, creatorID int64) int64 {
	t.Helper()
	g, err := NewGroupStore(db).Create(name, "", model.GroupPublic, creatorID)
	if err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return g.ID
}

func seedEvent(t *testing.T, db *sql.DB, authorID int64, title string, start time.Time) *model.Event {
	t.Helper()
	e, err := NewEventStore(db).Create(model.Event{
		AuthorID:  authorID,
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return e
}

func TestConnectAndGroupIDsForEvent(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)

	author := seedUser(t, db, "author@example.com")
	g1 := seedGroup(t, db, "Hikers", author)
	g2 := seedGroup(t, db, "Readers", author)
	event := seedEvent(t, db, author, "Trail Day", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	if err := s.Connect(event.ID, g1); err != nil {
		t.Fatalf("connect g1: %v", err)
	}
	if err := s.Connect(event.ID, g2); err != nil {
		t.Fatalf("connect g2: %v", err)
	}

	ids, err := s.GroupIDsForEvent(event.ID)
	if err != nil {
		t.Fatalf("group ids: %v", err)
	}
	if len(ids) != 2 || ids[0] != g1 || ids[1] != g2 {
		t.Errorf("group ids = %v, want [%d %d]", ids, g1, g2)
	}
}

func TestConnectIdempotent(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)

	author := seedUser(t, db, "author@example.com")
	g := seedGroup(t, db, "Hikers", author)
	event := seedEvent(t, db, author, "Trail Day", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	if err := s.Connect(event.ID, g); err != nil {
		t.Fatalf("first connect: %v", err)
	}
	if err := s.Connect(event.ID, g); err != nil {
		t.Fatalf("repeat connect should be a no-op, got: %v", err)
	}

	ids, err := s.GroupIDsForEvent(event.ID)
	if err != nil {
		t.Fatalf("group ids: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("got %d connections, want 1", len(ids))
	}
}

func TestConnectMissingGroup(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)

	author := seedUser(t, db, "author@example.com")
	event := seedEvent(t, db, author, "Trail Day", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	err := s.Connect(event.ID, 999)
	if !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("err = %v, want ErrGroupNotFound", err)
	}
}

func TestConnectMissingEvent(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)

	author := seedUser(t, db, "author@example.com")
	g := seedGroup(t, db, "Hikers", author)

	err := s.Connect(999, g)
	if !errors.Is(err, ErrEventNotFound) {
		t.Errorf("err = %v, want ErrEventNotFound", err)
	}
}

func TestDisconnect(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)

	author := seedUser(t, db, "author@example.com")
	g := seedGroup(t, db, "Hikers", author)
	event := seedEvent(t, db, author, "Trail Day", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	if err := s.Connect(event.ID, g); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Disconnect(event.ID, g); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	ids, err := s.GroupIDsForEvent(event.ID)
	if err != nil {
		t.Fatalf("group ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %d connections after disconnect, want 0", len(ids))
	}
}

func TestDisconnectNotConnected(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)

	author := seedUser(t, db, "author@example.com")
	g := seedGroup(t, db, "Hikers", author)
	event := seedEvent(t, db, author, "Trail Day", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	err := s.Disconnect(event.ID, g)
	if !errors.Is(err, ErrEventNotFoundForGroup) {
		t.Errorf("err = %v, want ErrEventNotFoundForGroup", err)
	}
}

func TestGroupIDsForEventUnconnected(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)

	author := seedUser(t, db, "author@example.com")
	event := seedEvent(t, db, author, "Loner", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	ids, err := s.GroupIDsForEvent(event.ID)
	if err != nil {
		t.Fatalf("group ids: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ids = %v, want empty non-nil slice", ids)
	}
}

func TestEventIDsForGroupFiltersPast(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)

	author := seedUser(t, db, "author@example.com")
	g := seedGroup(t, db, "Hikers", author)

	past := seedEvent(t, db, author, "Last Year", time.Now().UTC().AddDate(-1, 0, 0))
	future := seedEvent(t, db, author, "Next Month", time.Now().UTC().AddDate(0, 1, 0))

	for _, e := range []*model.Event{past, future} {
		if err := s.Connect(e.ID, g); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}

	upcoming, err := s.EventIDsForGroup(g, EventIDOptions{})
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0] != future.ID {
		t.Errorf("upcoming = %v, want [%d]", upcoming, future.ID)
	}

	all, err := s.EventIDsForGroup(g, EventIDOptions{IncludePast: true})
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d events with IncludePast, want 2", len(all))
	}
}

func TestEventIDsForGroupFiltersStatus(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)
	events := NewEventStore(db)

	author := seedUser(t, db, "author@example.com")
	g := seedGroup(t, db, "Hikers", author)

	pub := seedEvent(t, db, author, "Published", time.Now().UTC().AddDate(0, 1, 0))
	priv, err := events.Create(model.Event{
		AuthorID:  author,
		Title:     "Private",
		StartTime: time.Now().UTC().AddDate(0, 1, 0),
		EndTime:   time.Now().UTC().AddDate(0, 1, 0).Add(time.Hour),
		Status:    model.EventStatusPrivate,
	})
	if err != nil {
		t.Fatalf("create private event: %v", err)
	}

	for _, id := range []int64{pub.ID, priv.ID} {
		if err := s.Connect(id, g); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}

	ids, err := s.EventIDsForGroup(g, EventIDOptions{Statuses: []string{model.EventStatusPublish}})
	if err != nil {
		t.Fatalf("event ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != pub.ID {
		t.Errorf("ids = %v, want [%d]", ids, pub.ID)
	}
}

func TestAssociationsRemovedWithEvent(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)
	events := NewEventStore(db)

	author := seedUser(t, db, "author@example.com")
	g := seedGroup(t, db, "Hikers", author)
	event := seedEvent(t, db, author, "Doomed", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	if err := s.Connect(event.ID, g); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := events.Delete(event.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	ids, err := s.EventIDsForGroup(g, EventIDOptions{IncludePast: true})
	if err != nil {
		t.Fatalf("event ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %d stale associations after event delete, want 0", len(ids))
	}
}

func TestAssociationsRemovedWithGroup(t *testing.T) {
	db := testDB(t)
	s := NewAssociationStore(db)
	groups := NewGroupStore(db)

	author := seedUser(t, db, "author@example.com")
	g := seedGroup(t, db, "Hikers", author)
	event := seedEvent(t, db, author, "Orphan", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	if err := s.Connect(event.ID, g); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := groups.Delete(g); err != nil {
		t.Fatalf("delete group: %v", err)
	}

	ids, err := s.GroupIDsForEvent(event.ID)
	if err != nil {
		t.Fatalf("group ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %d stale associations after group delete, want 0", len(ids))
	}
}
