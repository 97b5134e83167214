package push

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

// Notifier turns recorded activity into web push notifications for group
// members. Only the per-group records matter here: they carry the group ID
// and there is exactly one per connected group, so each member hears about a
// shared event once per group they can see it in.
type Notifier struct {
	service *Service
	push    *store.PushStore
	groups  *store.GroupStore
	events  *store.EventStore
	logger  *slog.Logger
}

func NewNotifier(service *Service, pushStore *store.PushStore, groupStore *store.GroupStore, eventStore *store.EventStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		service: service,
		push:    pushStore,
		groups:  groupStore,
		events:  eventStore,
		logger:  logger,
	}
}

func (n *Notifier) ActivityRecorded(a model.Activity) {
	if a.Component != model.ComponentGroups {
		return
	}

	group, err := n.groups.GetByID(a.ItemID)
	if err != nil || group == nil {
		n.logger.Warn("push notify: group lookup", "group_id", a.ItemID, "error", err)
		return
	}
	event, err := n.events.GetByID(a.SecondaryItemID)
	if err != nil || event == nil {
		n.logger.Warn("push notify: event lookup", "event_id", a.SecondaryItemID, "error", err)
		return
	}

	title := fmt.Sprintf("New event in %s", group.Name)
	if a.Type == model.TypeEditEvent {
		title = fmt.Sprintf("Event updated in %s", group.Name)
	}
	payload := Payload{
		Title: title,
		Body:  event.Title,
		URL:   a.PrimaryLink,
		Tag:   fmt.Sprintf("group-%d-event-%d", group.ID, event.ID),
	}

	memberIDs, err := n.groups.MemberUserIDs(group.ID)
	if err != nil {
		n.logger.Warn("push notify: list members", "group_id", group.ID, "error", err)
		return
	}
	// The author already knows.
	recipients := memberIDs[:0]
	for _, id := range memberIDs {
		if id != a.UserID {
			recipients = append(recipients, id)
		}
	}

	subs, err := n.push.ListByUsers(recipients)
	if err != nil {
		n.logger.Warn("push notify: list subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		prefs, err := n.push.GetPreferences(sub.UserID)
		if err != nil || !prefs.GroupEvents {
			continue
		}
		n.send(sub, payload)
	}
}

func (n *Notifier) send(sub model.PushSubscription, payload Payload) {
	if err := n.service.Send(&sub, payload); err != nil {
		if errors.Is(err, ErrExpired) {
			n.push.DeleteByEndpoint(sub.Endpoint)
			return
		}
		n.logger.Warn("push notify: send", "endpoint", sub.Endpoint, "error", err)
	}
}
