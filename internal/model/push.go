package model

import "time"

// Notification type constants
const (
	NotifTypeGroupEvent    = "group_event"
	NotifTypeEventReminder = "event_reminder"
)

type PushSubscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dh_key"`
	AuthKey   string    `json:"auth_key"`
	CreatedAt time.Time `json:"created_at"`
}

type PushPreferences struct {
	UserID              int64     `json:"user_id"`
	GroupEvents         bool      `json:"group_events"`
	EventReminders      bool      `json:"event_reminders"`
	ReminderLeadMinutes int       `json:"reminder_lead_minutes"`
	UpdatedAt           time.Time `json:"updated_at"`
}
