package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dperrin/gather/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var allDayInt int
	err := scanner.Scan(
		&e.ID, &e.AuthorID, &e.Title, &e.Description, &e.StartTime, &e.EndTime,
		&allDayInt, &e.Location, &e.Status, &e.RRule, &e.Exdates,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.AllDay = allDayInt != 0
	return &e, nil
}

const eventCols = `id, author_id, title, description, start_time, end_time, all_day, location, status, rrule, exdates, created_at, updated_at`

func (s *EventStore) Create(e model.Event) (*model.Event, error) {
	var allDayInt int
	if e.AllDay {
		allDayInt = 1
	}
	if e.Status == "" {
		e.Status = model.EventStatusPublish
	}

	result, err := s.db.Exec(
		`INSERT INTO events (author_id, title, description, start_time, end_time, all_day, location, status, rrule, exdates)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.AuthorID, e.Title, e.Description, e.StartTime.UTC(), e.EndTime.UTC(),
		allDayInt, e.Location, e.Status, e.RRule, e.Exdates,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	row := s.db.QueryRow(`SELECT `+eventCols+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", id, err)
	}
	return e, nil
}

func (s *EventStore) Update(e model.Event) (*model.Event, error) {
	var allDayInt int
	if e.AllDay {
		allDayInt = 1
	}
	_, err := s.db.Exec(
		`UPDATE events SET title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?,
		 location = ?, status = ?, rrule = ?, exdates = ?, updated_at = ?
		 WHERE id = ?`,
		e.Title, e.Description, e.StartTime.UTC(), e.EndTime.UTC(), allDayInt,
		e.Location, e.Status, e.RRule, e.Exdates, time.Now().UTC(), e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update event %d: %w", e.ID, err)
	}
	return s.GetByID(e.ID)
}

func (s *EventStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	return nil
}

// EventQuery describes a "list events" request. The calendar package narrows
// it with social scope before it reaches SQL; by the time Execute runs, the
// scope is already expressed as plain constraints below.
type EventQuery struct {
	// Window: events overlapping [Start, End). Zero values = unbounded.
	Start time.Time
	End   time.Time

	Statuses  []string
	AuthorIDs []int64

	// IDs constrains results to an explicit inclusion list. nil = no
	// constraint. The calendar layer uses []int64{0} as the fail-closed
	// sentinel; no real event has ID 0.
	IDs []int64

	// GroupIDs, when non-nil, constrains results to events connected to at
	// least one of the groups via the event_groups index. A non-nil empty
	// slice must be resolved to the sentinel by the caller before Execute.
	GroupIDs []int64
}

// List executes the query, ordered by start time.
func (s *EventStore) List(q EventQuery) ([]model.Event, error) {
	query := `SELECT ` + prefixCols("e", eventCols) + ` FROM events e`
	args := []any{}

	if q.GroupIDs != nil {
		query += ` JOIN event_groups eg ON eg.event_id = e.id AND eg.group_id IN (` + placeholders(len(q.GroupIDs)) + `)`
		for _, g := range q.GroupIDs {
			args = append(args, g)
		}
	}

	query += ` WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND e.end_time > ?`
		args = append(args, q.Start.UTC())
	}
	if !q.End.IsZero() {
		query += ` AND e.start_time < ?`
		args = append(args, q.End.UTC())
	}
	if len(q.Statuses) > 0 {
		query += ` AND e.status IN (` + placeholders(len(q.Statuses)) + `)`
		for _, st := range q.Statuses {
			args = append(args, st)
		}
	}
	if len(q.AuthorIDs) > 0 {
		query += ` AND e.author_id IN (` + placeholders(len(q.AuthorIDs)) + `)`
		for _, a := range q.AuthorIDs {
			args = append(args, a)
		}
	}
	if q.IDs != nil {
		query += ` AND e.id IN (` + placeholders(len(q.IDs)) + `)`
		for _, id := range q.IDs {
			args = append(args, id)
		}
	}

	// Group by event ID so an event connected to several queried groups
	// appears once.
	query += ` GROUP BY e.id ORDER BY e.all_day DESC, e.start_time ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// ListIDs runs the query but returns IDs only.
func (s *EventStore) ListIDs(q EventQuery) ([]int64, error) {
	events, err := s.List(q)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// prefixCols qualifies each column in a comma-separated list with a table alias.
func prefixCols(alias, cols string) string {
	return alias + "." + strings.ReplaceAll(cols, ", ", ", "+alias+".")
}
