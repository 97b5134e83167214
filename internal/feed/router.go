package feed

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

// DefaultEditThrottle is how long after an event's last recorded activity a
// further edit stays silent, to keep repeated edits from flooding streams.
const DefaultEditThrottle = 6 * time.Hour

// Notifier receives each activity record the router creates. The server
// hangs websocket and push fanout off this.
type Notifier interface {
	ActivityRecorded(a model.Activity)
}

// Router turns event saves into activity records: it classifies the save as
// a create or an edit, applies the edit throttle, writes the canonical
// record, and fans out one hidden per-group record for each connected group.
type Router struct {
	activities *store.ActivityStore
	assoc      *store.AssociationStore
	throttle   time.Duration
	notifier   Notifier
	logger     *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithEditThrottle overrides the edit-throttle window.
func WithEditThrottle(d time.Duration) RouterOption {
	return func(r *Router) { r.throttle = d }
}

// WithNotifier registers a fanout target for recorded activity.
func WithNotifier(n Notifier) RouterOption {
	return func(r *Router) { r.notifier = n }
}

func NewRouter(activities *store.ActivityStore, assoc *store.AssociationStore, logger *slog.Logger, opts ...RouterOption) *Router {
	r := &Router{
		activities: activities,
		assoc:      assoc,
		throttle:   DefaultEditThrottle,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EditThrottle returns the active throttle window.
func (r *Router) EditThrottle() time.Duration {
	return r.throttle
}

// EventSaved records activity for a saved event. Draft events stay silent.
//
// A save is a create when the event's creation and modification timestamps
// are equal, otherwise an edit. An edit completing within the timestamp
// resolution of creation therefore classifies as a create; the duplicate
// top-level create that would produce is suppressed below.
func (r *Router) EventSaved(event *model.Event) error {
	if event == nil {
		return fmt.Errorf("nil event")
	}
	if event.Status == model.EventStatusDraft {
		return nil
	}

	typ := model.TypeEditEvent
	if event.CreatedAt.Equal(event.UpdatedAt) {
		typ = model.TypeCreateEvent
	}

	existing, err := r.activities.ListByEventID(event.ID)
	if err != nil {
		return fmt.Errorf("existing activity for event %d: %w", event.ID, err)
	}

	// There should never be more than one top-level create record.
	if typ == model.TypeCreateEvent {
		for _, a := range existing {
			if a.Type == model.TypeCreateEvent && a.Component == model.ComponentEvents {
				return nil
			}
		}
	}

	// Prevent edit floods.
	if typ == model.TypeEditEvent && len(existing) > 0 {
		last := existing[len(existing)-1]
		if time.Since(last.RecordedAt) < r.throttle {
			r.logger.Debug("edit throttled", "event_id", event.ID, "last_recorded", last.RecordedAt)
			return nil
		}
	}

	recorded := event.UpdatedAt
	if typ == model.TypeCreateEvent {
		recorded = event.CreatedAt
	}

	canonical, err := r.activities.Add(model.Activity{
		Component:       model.ComponentEvents,
		Type:            typ,
		UserID:          event.AuthorID,
		SecondaryItemID: event.ID,
		PrimaryLink:     fmt.Sprintf("/events/%d", event.ID),
		RecordedAt:      recorded,
	})
	if err != nil {
		return fmt.Errorf("record activity for event %d: %w", event.ID, err)
	}
	r.notify(*canonical)

	groupIDs, err := r.assoc.GroupIDsForEvent(event.ID)
	if err != nil {
		return fmt.Errorf("groups for event %d: %w", event.ID, err)
	}
	for _, groupID := range groupIDs {
		a, err := r.activities.Add(model.Activity{
			Component:       model.ComponentGroups,
			Type:            typ,
			UserID:          event.AuthorID,
			ItemID:          groupID,
			SecondaryItemID: event.ID,
			PrimaryLink:     fmt.Sprintf("/groups/%d/events/%d", groupID, event.ID),
			HideSitewide:    true,
			RecordedAt:      recorded,
		})
		if err != nil {
			return fmt.Errorf("record group activity for event %d in group %d: %w", event.ID, groupID, err)
		}
		r.notify(*a)
	}

	return nil
}

func (r *Router) notify(a model.Activity) {
	if r.notifier != nil {
		r.notifier.ActivityRecorded(a)
	}
}
