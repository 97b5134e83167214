package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dperrin/gather/internal/calendar"
	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

const reminderInterval = 60 * time.Second

// Reminder periodically scans subscribed users' calendars and pushes a
// notification shortly before their events start.
type Reminder struct {
	mu       sync.Mutex
	service  *Service
	push     *store.PushStore
	events   *store.EventStore
	resolver *calendar.Resolver
	logger   *slog.Logger
	interval time.Duration
	sent     map[string]time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewReminder(service *Service, pushStore *store.PushStore, eventStore *store.EventStore, resolver *calendar.Resolver, logger *slog.Logger) *Reminder {
	return &Reminder{
		service:  service,
		push:     pushStore,
		events:   eventStore,
		resolver: resolver,
		logger:   logger,
		interval: reminderInterval,
		sent:     make(map[string]time.Time),
	}
}

// Start begins the reminder loop.
func (r *Reminder) Start(ctx context.Context) {
	r.mu.Lock()
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.tick()
			}
		}
	}()
}

// Stop gracefully stops the reminder loop.
func (r *Reminder) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (r *Reminder) tick() {
	userIDs, err := r.push.ListSubscribedUserIDs()
	if err != nil {
		r.logger.Warn("reminder: list subscribed users", "error", err)
		return
	}

	now := time.Now().UTC()
	for _, userID := range userIDs {
		r.remindUser(userID, now)
	}
	r.prune(now)
}

func (r *Reminder) remindUser(userID int64, now time.Time) {
	prefs, err := r.push.GetPreferences(userID)
	if err != nil {
		r.logger.Warn("reminder: preferences", "user_id", userID, "error", err)
		return
	}
	if !prefs.EventReminders {
		return
	}
	lead := time.Duration(prefs.ReminderLeadMinutes) * time.Minute
	if lead <= 0 {
		lead = 30 * time.Minute
	}

	ids, err := r.resolver.EventIDsForUser(userID, calendar.Options{})
	if err != nil {
		r.logger.Warn("reminder: resolve calendar", "user_id", userID, "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	upcoming, err := r.events.List(store.EventQuery{IDs: ids, Start: now, End: now.Add(lead)})
	if err != nil {
		r.logger.Warn("reminder: list events", "user_id", userID, "error", err)
		return
	}

	for _, event := range upcoming {
		if event.StartTime.Before(now) {
			continue
		}
		key := fmt.Sprintf("%d/%d", userID, event.ID)
		r.mu.Lock()
		_, already := r.sent[key]
		if !already {
			r.sent[key] = now
		}
		r.mu.Unlock()
		if already {
			continue
		}

		minutes := int(event.StartTime.Sub(now).Minutes())
		payload := Payload{
			Title: "Upcoming event",
			Body:  fmt.Sprintf("%s starts in %d minutes", event.Title, minutes),
			URL:   fmt.Sprintf("/events/%d", event.ID),
			Tag:   fmt.Sprintf("reminder-%d", event.ID),
		}

		subs, err := r.push.ListByUser(userID)
		if err != nil {
			r.logger.Warn("reminder: list subscriptions", "user_id", userID, "error", err)
			continue
		}
		for _, sub := range subs {
			r.sendTo(sub, payload)
		}
	}
}

func (r *Reminder) sendTo(sub model.PushSubscription, payload Payload) {
	if err := r.service.Send(&sub, payload); err != nil {
		if errors.Is(err, ErrExpired) {
			r.push.DeleteByEndpoint(sub.Endpoint)
			return
		}
		r.logger.Warn("reminder: send", "endpoint", sub.Endpoint, "error", err)
	}
}

// prune drops sent-markers older than a day so the map stays small.
func (r *Reminder) prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, at := range r.sent {
		if now.Sub(at) > 24*time.Hour {
			delete(r.sent, key)
		}
	}
}
