// Package calendar resolves social context (groups, profile pages, viewers)
// into concrete event query constraints.
package calendar

import (
	"fmt"
	"time"

	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

// noResults is the sentinel event ID used to force an empty result set.
// No real event has ID 0, so constraining to it always yields zero rows.
// An unresolvable scope must never fall through to an unscoped query.
const noResults int64 = 0

// Scope describes whose events a listing should show. All fields are
// explicit; nothing is read from ambient request state.
type Scope struct {
	// Groups, when non-nil, restricts results to events connected to at
	// least one of the given groups. A non-nil empty slice forces zero
	// results rather than an unscoped listing.
	Groups []int64

	// DisplayedUser, when non-nil, restricts results to the events that
	// belong on that user's calendar: their own, their friends' public
	// events, and events connected to their groups. A pointer to 0 forces
	// zero results.
	DisplayedUser *int64

	// Viewer is the logged-in user looking at the listing. A viewer
	// looking at their own calendar sees private events; everyone else
	// sees published events only.
	Viewer int64
}

// Options filters EventIDsForUser.
type Options struct {
	IncludePast bool
	// GroupStatuses limits which group-connected events qualify.
	// Empty = published only.
	GroupStatuses []string
	// IncludePrivate includes the user's own private events.
	IncludePrivate bool
}

// Resolver answers scope questions using the event, association, group and
// friendship stores.
type Resolver struct {
	events  *store.EventStore
	assoc   *store.AssociationStore
	groups  *store.GroupStore
	friends *store.FriendStore
}

func NewResolver(events *store.EventStore, assoc *store.AssociationStore, groups *store.GroupStore, friends *store.FriendStore) *Resolver {
	return &Resolver{events: events, assoc: assoc, groups: groups, friends: friends}
}

// ApplyScope narrows q in place. It must run before ordering or pagination
// is applied, since it changes the candidate set rather than its order.
func (r *Resolver) ApplyScope(q *store.EventQuery, s Scope) error {
	if s.Groups != nil {
		if len(s.Groups) == 0 {
			q.GroupIDs = nil
			q.IDs = []int64{noResults}
			return nil
		}
		q.GroupIDs = s.Groups
	}

	if s.DisplayedUser != nil {
		userID := *s.DisplayedUser
		if userID == 0 {
			q.IDs = []int64{noResults}
			return nil
		}

		opts := Options{IncludePast: true}
		if s.Viewer == userID {
			opts.IncludePrivate = true
			opts.GroupStatuses = []string{model.EventStatusPublish, model.EventStatusPrivate}
		}

		ids, err := r.EventIDsForUser(userID, opts)
		if err != nil {
			return fmt.Errorf("resolve calendar for user %d: %w", userID, err)
		}
		if len(ids) == 0 {
			ids = []int64{noResults}
		}
		q.IDs = ids
	}

	return nil
}

// EventIDsForUser returns the IDs of every event that belongs on the user's
// calendar: events they authored, published events authored by their
// friends, and events connected to any group they belong to.
func (r *Resolver) EventIDsForUser(userID int64, opts Options) ([]int64, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	add := func(more []int64) {
		for _, id := range more {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	var windowStart time.Time
	if !opts.IncludePast {
		windowStart = time.Now().UTC()
	}

	ownStatuses := []string{model.EventStatusPublish}
	if opts.IncludePrivate {
		ownStatuses = append(ownStatuses, model.EventStatusPrivate)
	}

	ownQ := store.EventQuery{Start: windowStart, AuthorIDs: []int64{userID}, Statuses: ownStatuses}
	own, err := r.events.ListIDs(ownQ)
	if err != nil {
		return nil, fmt.Errorf("own events: %w", err)
	}
	add(own)

	friendIDs, err := r.friends.FriendIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("friend ids: %w", err)
	}
	if len(friendIDs) > 0 {
		friendQ := store.EventQuery{
			Start:     windowStart,
			AuthorIDs: friendIDs,
			Statuses:  []string{model.EventStatusPublish},
		}
		byFriends, err := r.events.ListIDs(friendQ)
		if err != nil {
			return nil, fmt.Errorf("friends' events: %w", err)
		}
		add(byFriends)
	}

	groupIDs, err := r.groups.GroupIDsForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("group ids: %w", err)
	}
	if len(groupIDs) > 0 {
		statuses := opts.GroupStatuses
		if len(statuses) == 0 {
			statuses = []string{model.EventStatusPublish}
		}
		groupQ := store.EventQuery{Start: windowStart, GroupIDs: groupIDs, Statuses: statuses}
		byGroups, err := r.events.ListIDs(groupQ)
		if err != nil {
			return nil, fmt.Errorf("group events: %w", err)
		}
		add(byGroups)
	}

	return ids, nil
}
