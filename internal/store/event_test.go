package store

import (
	"testing"
	"time"

	"github.com/dperrin/gather/internal/model"
)

func TestCreateAndGetEvent(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	author := seedUser(t, db, "author@example.com")

	start := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	e, err := s.Create(model.Event{
		AuthorID:    author,
		Title:       "Book Club",
		Description: "Chapter 4",
		StartTime:   start,
		EndTime:     start.Add(time.Hour),
		Location:    "Library",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if e.Title != "Book Club" || e.Location != "Library" {
		t.Errorf("got %+v", e)
	}
	if e.Status != model.EventStatusPublish {
		t.Errorf("status = %q, want default %q", e.Status, model.EventStatusPublish)
	}

	got, err := s.GetByID(e.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Description != "Chapter 4" {
		t.Errorf("description = %q", got.Description)
	}
}

func TestGetEventNotFound(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)

	got, err := s.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestUpdateEventBumpsUpdatedAt(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	author := seedUser(t, db, "author@example.com")

	e := seedEvent(t, db, author, "Original", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))

	e.Title = "Renamed"
	e.Status = model.EventStatusPrivate
	updated, err := s.Update(*e)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Renamed" || updated.Status != model.EventStatusPrivate {
		t.Errorf("got %+v", updated)
	}
	if !updated.UpdatedAt.After(e.UpdatedAt) {
		t.Errorf("updated_at not bumped: %v vs %v", updated.UpdatedAt, e.UpdatedAt)
	}
}

func TestListByWindow(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	author := seedUser(t, db, "author@example.com")

	seedEvent(t, db, author, "March", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))
	seedEvent(t, db, author, "April", time.Date(2026, 4, 5, 10, 0, 0, 0, time.UTC))
	seedEvent(t, db, author, "May", time.Date(2026, 5, 5, 10, 0, 0, 0, time.UTC))

	events, err := s.List(EventQuery{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Title != "March" || events[1].Title != "April" {
		t.Errorf("order: %q, %q", events[0].Title, events[1].Title)
	}
}

func TestListAllDayFirst(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	author := seedUser(t, db, "author@example.com")

	day := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	seedEvent(t, db, author, "Morning Meeting", day.Add(9*time.Hour))
	if _, err := s.Create(model.Event{
		AuthorID: author, Title: "Holiday",
		StartTime: day, EndTime: day.AddDate(0, 0, 1), AllDay: true,
	}); err != nil {
		t.Fatalf("create all-day: %v", err)
	}

	events, err := s.List(EventQuery{Start: day, End: day.AddDate(0, 0, 1)})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Title != "Holiday" {
		t.Errorf("first = %q, want all-day event first", events[0].Title)
	}
}

func TestListByStatusAndAuthor(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	alice := seedUser(t, db, "alice@example.com")
	bob := seedUser(t, db, "bob@example.com")

	seedEvent(t, db, alice, "Alice Public", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))
	s.Create(model.Event{
		AuthorID: alice, Title: "Alice Private",
		StartTime: time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2026, 3, 6, 11, 0, 0, 0, time.UTC),
		Status:    model.EventStatusPrivate,
	})
	seedEvent(t, db, bob, "Bob Public", time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC))

	events, err := s.List(EventQuery{
		AuthorIDs: []int64{alice},
		Statuses:  []string{model.EventStatusPublish},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 1 || events[0].Title != "Alice Public" {
		t.Errorf("got %+v, want only Alice Public", events)
	}
}

func TestListIDsSentinelYieldsNothing(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	author := seedUser(t, db, "author@example.com")
	seedEvent(t, db, author, "Exists", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))

	ids, err := s.ListIDs(EventQuery{IDs: []int64{0}})
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("sentinel query returned %v, want nothing", ids)
	}
}

func TestListByGroupIDs(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	assoc := NewAssociationStore(db)
	author := seedUser(t, db, "author@example.com")

	g1 := seedGroup(t, db, "Hikers", author)
	g2 := seedGroup(t, db, "Readers", author)

	inG1 := seedEvent(t, db, author, "Hike", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))
	inBoth := seedEvent(t, db, author, "Joint Picnic", time.Date(2026, 3, 6, 10, 0, 0, 0, time.UTC))
	seedEvent(t, db, author, "Unconnected", time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC))

	for _, c := range []struct{ e, g int64 }{{inG1.ID, g1}, {inBoth.ID, g1}, {inBoth.ID, g2}} {
		if err := assoc.Connect(c.e, c.g); err != nil {
			t.Fatalf("connect: %v", err)
		}
	}

	events, err := s.List(EventQuery{GroupIDs: []int64{g1, g2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// The doubly-connected event must appear once, the unconnected not at all.
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	for _, e := range events {
		if e.Title == "Unconnected" {
			t.Error("unconnected event leaked into group listing")
		}
	}
}

func TestDeleteEvent(t *testing.T) {
	db := testDB(t)
	s := NewEventStore(db)
	author := seedUser(t, db, "author@example.com")

	e := seedEvent(t, db, author, "Doomed", time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC))
	if err := s.Delete(e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.GetByID(e.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}
