package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dperrin/gather/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

const pushSubCols = `id, user_id, endpoint, p256dh_key, auth_key, created_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := scanner.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PushStore) CreateSubscription(userID int64, endpoint, p256dh, auth string) (*model.PushSubscription, error) {
	result, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key`,
		userID, endpoint, p256dh, auth,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}
	id, _ := result.LastInsertId()

	// LastInsertId may be 0 on conflict update; re-query by endpoint
	if id == 0 {
		return s.getByEndpoint(endpoint)
	}
	return s.GetByID(id)
}

func (s *PushStore) GetByID(id int64) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+pushSubCols+` FROM push_subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return sub, nil
}

func (s *PushStore) getByEndpoint(endpoint string) (*model.PushSubscription, error) {
	row := s.db.QueryRow(`SELECT `+pushSubCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push subscription by endpoint: %w", err)
	}
	return sub, nil
}

func (s *PushStore) ListByUser(userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT `+pushSubCols+` FROM push_subscriptions WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by user: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListByUsers returns subscriptions for any of the given users.
func (s *PushStore) ListByUsers(userIDs []int64) ([]model.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	rows, err := s.db.Query(
		`SELECT `+pushSubCols+` FROM push_subscriptions WHERE user_id IN (`+placeholders(len(userIDs))+`) ORDER BY user_id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions by users: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListSubscribedUserIDs returns the distinct user IDs that have at least one
// push subscription.
func (s *PushStore) ListSubscribedUserIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT DISTINCT user_id FROM push_subscriptions ORDER BY user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list subscribed user ids: %w", err)
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PushStore) DeleteSubscription(id int64) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// GetPreferences returns the user's notification preferences, defaulting to
// everything enabled when the user has never saved any.
func (s *PushStore) GetPreferences(userID int64) (*model.PushPreferences, error) {
	var p model.PushPreferences
	var groupEvents, reminders int
	err := s.db.QueryRow(
		`SELECT user_id, group_events, event_reminders, reminder_lead_minutes, updated_at
		 FROM push_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &groupEvents, &reminders, &p.ReminderLeadMinutes, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return &model.PushPreferences{
			UserID:              userID,
			GroupEvents:         true,
			EventReminders:      true,
			ReminderLeadMinutes: 30,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get push preferences: %w", err)
	}
	p.GroupEvents = groupEvents != 0
	p.EventReminders = reminders != 0
	return &p, nil
}

func (s *PushStore) SetPreferences(p model.PushPreferences) error {
	var groupEvents, reminders int
	if p.GroupEvents {
		groupEvents = 1
	}
	if p.EventReminders {
		reminders = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO push_preferences (user_id, group_events, event_reminders, reminder_lead_minutes, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET group_events = excluded.group_events,
		   event_reminders = excluded.event_reminders,
		   reminder_lead_minutes = excluded.reminder_lead_minutes,
		   updated_at = excluded.updated_at`,
		p.UserID, groupEvents, reminders, p.ReminderLeadMinutes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set push preferences: %w", err)
	}
	return nil
}
