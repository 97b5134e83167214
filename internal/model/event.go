package model

import "time"

// Event statuses. "publish" is visible to anyone who can see the event's
// context; "private" is visible to the author and connected groups only.
const (
	EventStatusPublish = "publish"
	EventStatusPrivate = "private"
	EventStatusDraft   = "draft"
)

type Event struct {
	ID          int64     `json:"id"`
	AuthorID    int64     `json:"author_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	Location    string    `json:"location"`
	Status      string    `json:"status"`
	// RRule holds an RRULE-style recurrence string ("" = one-off event).
	// Exdates holds comma-separated RFC3339 dates excluded from the series.
	RRule     string    `json:"rrule,omitempty"`
	Exdates   string    `json:"exdates,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
