package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Association mutation errors. Reads never return these; a missing
// association is an empty result, not an error.
var (
	ErrGroupNotFound         = errors.New("group not found")
	ErrEventNotFound         = errors.New("event not found")
	ErrEventNotFoundForGroup = errors.New("event not connected to group")
)

// AssociationStore maintains the many-to-many event/group relation in the
// event_groups join table and answers membership queries against it.
type AssociationStore struct {
	db *sql.DB
}

func NewAssociationStore(db *sql.DB) *AssociationStore {
	return &AssociationStore{db: db}
}

// EventIDOptions filters EventIDsForGroup.
type EventIDOptions struct {
	// IncludePast includes events whose end time is already behind us.
	IncludePast bool
	// Statuses restricts results to the given event statuses. Empty = all.
	Statuses []string
}

func (s *AssociationStore) groupExists(groupID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM groups WHERE id = ?`, groupID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check group %d: %w", groupID, err)
	}
	return true, nil
}

func (s *AssociationStore) eventExists(eventID int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check event %d: %w", eventID, err)
	}
	return true, nil
}

// Connect links an event to a group. Connecting an already-connected pair is
// a no-op, not an error.
func (s *AssociationStore) Connect(eventID, groupID int64) error {
	ok, err := s.groupExists(groupID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGroupNotFound
	}

	ok, err = s.eventExists(eventID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEventNotFound
	}

	_, err = s.db.Exec(
		`INSERT INTO event_groups (event_id, group_id) VALUES (?, ?)
		 ON CONFLICT(event_id, group_id) DO NOTHING`,
		eventID, groupID,
	)
	if err != nil {
		return fmt.Errorf("connect event %d to group %d: %w", eventID, groupID, err)
	}
	return nil
}

// Disconnect removes the link between an event and a group.
func (s *AssociationStore) Disconnect(eventID, groupID int64) error {
	ok, err := s.groupExists(groupID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGroupNotFound
	}

	ok, err = s.eventExists(eventID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrEventNotFound
	}

	result, err := s.db.Exec(
		`DELETE FROM event_groups WHERE event_id = ? AND group_id = ?`,
		eventID, groupID,
	)
	if err != nil {
		return fmt.Errorf("disconnect event %d from group %d: %w", eventID, groupID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrEventNotFoundForGroup
	}
	return nil
}

// GroupIDsForEvent returns the IDs of all groups the event is connected to.
// An unconnected event yields an empty slice.
func (s *AssociationStore) GroupIDsForEvent(eventID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT group_id FROM event_groups WHERE event_id = ? ORDER BY group_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("group ids for event %d: %w", eventID, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

// EventIDsForGroup returns the IDs of events connected to the group,
// filtered by opts. IDs only; callers needing full events fetch them
// separately.
func (s *AssociationStore) EventIDsForGroup(groupID int64, opts EventIDOptions) ([]int64, error) {
	query := `SELECT e.id FROM events e
		 JOIN event_groups eg ON eg.event_id = e.id
		 WHERE eg.group_id = ?`
	args := []any{groupID}

	if !opts.IncludePast {
		query += ` AND e.end_time > ?`
		args = append(args, time.Now().UTC())
	}
	if len(opts.Statuses) > 0 {
		query += ` AND e.status IN (` + placeholders(len(opts.Statuses)) + `)`
		for _, st := range opts.Statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY e.start_time ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("event ids for group %d: %w", groupID, err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '?')
	}
	return string(out)
}
