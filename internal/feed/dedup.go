// Package feed owns the activity stream: recording entries when events are
// saved and collapsing the duplicates the group fanout produces when a
// stream is listed.
package feed

import (
	"strings"

	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

// maxBackfillRounds bounds the backfill loop. The loop also stops on its own
// when a fetch comes back short or a pass removes nothing, but pathological
// duplication could otherwise keep it fetching; past the cap callers get a
// short page.
const maxBackfillRounds = 10

// FetchFunc fetches one page of activity. Satisfied by
// (*store.ActivityStore).Fetch.
type FetchFunc func(store.ActivityQuery) (store.ActivityPage, error)

// Deduplicate collapses duplicate event records in a fetched page and
// backfills from subsequent pages to restore the page size.
//
// One event save fans out into a canonical "events" record plus one
// "groups" record per connected group. A plain listing would show them all;
// this keeps exactly one per (type, event) key — preferring the canonical
// record — and then re-fetches, excluding everything already seen, until
// the page is full again or the stream is exhausted. A failed backfill
// fetch counts as exhaustion: a short page beats surfacing an error to the
// stream renderer.
func Deduplicate(page store.ActivityPage, q store.ActivityQuery, fetch FetchFunc) store.ActivityPage {
	requested := len(page.Activities)

	seen := make([]int64, 0, requested)
	for _, a := range page.Activities {
		seen = append(seen, a.ID)
	}

	acts := page.Activities
	total := page.Total

	removed := dedupe(&acts)

	// Rows served on earlier pages sit ahead of this page in the stream and
	// their IDs are unknown here, so they cannot go in the exclusion list.
	// Backfill fetches restart at the top of the stream and skip that prefix
	// positionally instead; the seen exclusions all sit after it, so they do
	// not shift it.
	skip := 0
	if q.Page > 1 {
		skip = (q.Page - 1) * pageSize(q)
	}

	for round := 0; removed > 0 && len(acts) < requested && round < maxBackfillRounds; round++ {
		bq := q
		bq.Page = 1
		bq.Exclude = append(append([]int64{}, q.Exclude...), seen...)
		// In case of more reduction due to further duplication, fetch a
		// generous number.
		bq.PerPage = skip + pageSize(q) + removed

		backfill, err := fetch(bq)
		if err != nil {
			// Treat a failed fetch as an empty stream.
			break
		}
		exhausted := len(backfill.Activities) < bq.PerPage

		fresh := backfill.Activities
		if skip >= len(fresh) {
			fresh = nil
		} else {
			fresh = fresh[skip:]
		}

		for _, a := range fresh {
			seen = append(seen, a.ID)
		}
		acts = append(acts, fresh...)
		total += backfill.Total

		removed = dedupe(&acts)
		if len(acts) > requested {
			acts = acts[:requested]
		}

		if exhausted {
			break
		}
	}

	if len(acts) > requested {
		acts = acts[:requested]
	}
	return store.ActivityPage{Activities: acts, Total: total}
}

func pageSize(q store.ActivityQuery) int {
	if q.PerPage > 0 {
		return q.PerPage
	}
	return 20
}

// dedupe removes duplicate event records from acts in place, preserving the
// original order of survivors, and returns how many were removed.
//
// Records are grouped by (type, event ID), restricted to the service's own
// activity types. Within a group the survivor is the canonical
// events-component record when present, otherwise the first record in fetch
// order.
func dedupe(acts *[]model.Activity) int {
	type key struct {
		typ     string
		eventID int64
	}

	groups := make(map[key][]int)
	for i, a := range *acts {
		if !strings.HasPrefix(a.Type, model.ActivityTypePrefix) {
			continue
		}
		k := key{typ: a.Type, eventID: a.SecondaryItemID}
		groups[k] = append(groups[k], i)
	}

	drop := make(map[int]bool)
	for _, indexes := range groups {
		if len(indexes) <= 1 {
			continue
		}

		primary := indexes[0]
		for _, i := range indexes {
			if (*acts)[i].Component == model.ComponentEvents {
				primary = i
				break
			}
		}

		for _, i := range indexes {
			if i != primary {
				drop[i] = true
			}
		}
	}

	if len(drop) == 0 {
		return 0
	}

	kept := (*acts)[:0]
	for i, a := range *acts {
		if !drop[i] {
			kept = append(kept, a)
		}
	}
	*acts = kept
	return len(drop)
}
