package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dperrin/gather/internal/feed"
	"github.com/dperrin/gather/internal/model"
	"github.com/dperrin/gather/internal/store"
)

const maxFeedPerPage = 100

type FeedHandler struct {
	activities *store.ActivityStore
	logger     *slog.Logger
}

func NewFeedHandler(as *store.ActivityStore, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{activities: as, logger: logger}
}

func feedQuery(r *http.Request) store.ActivityQuery {
	q := store.ActivityQuery{}

	if page, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && page > 0 {
		q.Page = page
	}
	if perPage, err := strconv.Atoi(r.URL.Query().Get("per_page")); err == nil && perPage > 0 {
		if perPage > maxFeedPerPage {
			perPage = maxFeedPerPage
		}
		q.PerPage = perPage
	}
	if userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64); err == nil && userID > 0 {
		q.UserID = userID
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		q.Types = []string{typ}
	}

	return q
}

// Sitewide handles GET /api/feed. Pages are deduplicated so an event shared
// into several groups shows up once, backfilled to the requested page size.
func (h *FeedHandler) Sitewide(w http.ResponseWriter, r *http.Request) {
	q := feedQuery(r)

	page, err := h.activities.Fetch(q)
	if err != nil {
		h.logger.Error("fetch feed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch feed")
		return
	}

	page = feed.Deduplicate(page, q, h.activities.Fetch)
	if page.Activities == nil {
		page.Activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, page)
}

// GroupFeed handles GET /api/groups/{id}/feed. Group streams include the
// hidden per-group records the sitewide stream suppresses, so no
// deduplication pass is needed here.
func (h *FeedHandler) GroupFeed(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	q := feedQuery(r)
	q.Components = []string{model.ComponentGroups}
	q.ItemID = id
	q.ShowHidden = true

	page, err := h.activities.Fetch(q)
	if err != nil {
		h.logger.Error("fetch group feed", "group_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch feed")
		return
	}
	if page.Activities == nil {
		page.Activities = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, page)
}
