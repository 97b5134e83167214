package model

import "time"

// Activity components. "events" holds the canonical sitewide record for an
// event action; "groups" holds the per-group copies created by the fanout.
const (
	ComponentEvents = "events"
	ComponentGroups = "groups"
)

// Activity types carry the service's reserved prefix so the feed layer can
// recognize its own records when collapsing duplicates.
const (
	ActivityTypePrefix = "gather_"

	TypeCreateEvent = "gather_create_event"
	TypeEditEvent   = "gather_edit_event"
)

type Activity struct {
	ID        int64  `json:"id"`
	Component string `json:"component"`
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	// ItemID is the group ID for groups-component records, 0 otherwise.
	ItemID int64 `json:"item_id"`
	// SecondaryItemID is the event ID the record describes.
	SecondaryItemID int64     `json:"secondary_item_id"`
	PrimaryLink     string    `json:"primary_link"`
	HideSitewide    bool      `json:"hide_sitewide"`
	RecordedAt      time.Time `json:"recorded_at"`
}
