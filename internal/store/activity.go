package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dperrin/gather/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	var hidden int
	err := scanner.Scan(
		&a.ID, &a.Component, &a.Type, &a.UserID, &a.ItemID,
		&a.SecondaryItemID, &a.PrimaryLink, &hidden, &a.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	a.HideSitewide = hidden != 0
	return &a, nil
}

const activityCols = `id, component, type, user_id, item_id, secondary_item_id, primary_link, hide_sitewide, recorded_at`

// Add records a new activity item. Records are append-only; nothing in the
// service mutates them after this point.
func (s *ActivityStore) Add(a model.Activity) (*model.Activity, error) {
	var hidden int
	if a.HideSitewide {
		hidden = 1
	}
	recorded := a.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now().UTC()
	}

	result, err := s.db.Exec(
		`INSERT INTO activity (component, type, user_id, item_id, secondary_item_id, primary_link, hide_sitewide, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Component, a.Type, a.UserID, a.ItemID, a.SecondaryItemID, a.PrimaryLink, hidden, recorded.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ActivityStore) GetByID(id int64) (*model.Activity, error) {
	row := s.db.QueryRow(`SELECT `+activityCols+` FROM activity WHERE id = ?`, id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// ListByEventID returns every record for the event across both components,
// restricted to the service's own types, oldest first. Hidden records are
// included; the save router needs them for its throttle check.
func (s *ActivityStore) ListByEventID(eventID int64) ([]model.Activity, error) {
	rows, err := s.db.Query(
		`SELECT `+activityCols+` FROM activity
		 WHERE component IN (?, ?) AND type IN (?, ?) AND secondary_item_id = ?
		 ORDER BY recorded_at ASC, id ASC`,
		model.ComponentEvents, model.ComponentGroups,
		model.TypeCreateEvent, model.TypeEditEvent, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity for event %d: %w", eventID, err)
	}
	defer rows.Close()
	return collectActivities(rows)
}

// Query describes one page of the activity stream. Zero values mean
// "no constraint" except PerPage, which defaults to 20.
type ActivityQuery struct {
	Components []string
	Types      []string
	UserID     int64
	ItemID     int64 // group ID for group feeds
	EventID    int64 // secondary item
	ShowHidden bool  // include hide_sitewide records
	Exclude    []int64
	PerPage    int
	Page       int // 1-based
}

// ActivityPage is one fetched page plus the total matching count.
type ActivityPage struct {
	Activities []model.Activity `json:"activities"`
	Total      int              `json:"total"`
}

// Fetch returns one page of activity, newest first.
func (s *ActivityStore) Fetch(q ActivityQuery) (ActivityPage, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if len(q.Components) > 0 {
		where += ` AND component IN (` + placeholders(len(q.Components)) + `)`
		for _, c := range q.Components {
			args = append(args, c)
		}
	}
	if len(q.Types) > 0 {
		where += ` AND type IN (` + placeholders(len(q.Types)) + `)`
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	if q.UserID != 0 {
		where += ` AND user_id = ?`
		args = append(args, q.UserID)
	}
	if q.ItemID != 0 {
		where += ` AND item_id = ?`
		args = append(args, q.ItemID)
	}
	if q.EventID != 0 {
		where += ` AND secondary_item_id = ?`
		args = append(args, q.EventID)
	}
	if !q.ShowHidden {
		where += ` AND hide_sitewide = 0`
	}
	if len(q.Exclude) > 0 {
		where += ` AND id NOT IN (` + placeholders(len(q.Exclude)) + `)`
		for _, id := range q.Exclude {
			args = append(args, id)
		}
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM activity`+where, args...).Scan(&total); err != nil {
		return ActivityPage{}, fmt.Errorf("count activity: %w", err)
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	query := `SELECT ` + activityCols + ` FROM activity` + where +
		` ORDER BY recorded_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return ActivityPage{}, fmt.Errorf("fetch activity: %w", err)
	}
	defer rows.Close()

	acts, err := collectActivities(rows)
	if err != nil {
		return ActivityPage{}, err
	}
	return ActivityPage{Activities: acts, Total: total}, nil
}

func collectActivities(rows *sql.Rows) ([]model.Activity, error) {
	var acts []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		acts = append(acts, *a)
	}
	return acts, rows.Err()
}
