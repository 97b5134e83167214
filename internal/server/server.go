// Package server wires the stores, feed router, and background services
// into an HTTP handler.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dperrin/gather/internal/backup"
	"github.com/dperrin/gather/internal/calendar"
	"github.com/dperrin/gather/internal/email"
	"github.com/dperrin/gather/internal/feed"
	"github.com/dperrin/gather/internal/handler"
	"github.com/dperrin/gather/internal/middleware"
	"github.com/dperrin/gather/internal/push"
	"github.com/dperrin/gather/internal/store"
	ws "github.com/dperrin/gather/internal/websocket"
)

type Server struct {
	db  *sql.DB
	hub *ws.Hub

	authH     *handler.AuthHandler
	eventH    *handler.EventHandler
	groupH    *handler.GroupHandler
	feedH     *handler.FeedHandler
	calendarH *handler.CalendarHandler
	friendH   *handler.FriendHandler
	pushH     *handler.PushHandler
	backupH   *handler.BackupHandler
	settingsH *handler.SettingsHandler

	sessionStore    *store.SessionStore
	signinCodeStore *store.SigninCodeStore
	rateLimiter     *middleware.RateLimiter
	backupManager   *backup.Manager
	pushReminder    *push.Reminder
	logger          *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, backupCfg backup.Config, pushCfg push.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	signinCodeStore := store.NewSigninCodeStore(db)
	eventStore := store.NewEventStore(db)
	groupStore := store.NewGroupStore(db)
	assocStore := store.NewAssociationStore(db)
	activityStore := store.NewActivityStore(db)
	friendStore := store.NewFriendStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	resolver := calendar.NewResolver(eventStore, assocStore, groupStore, friendStore)

	backupMgr := backup.NewManager(backupCfg, db, backupStore, settingsStore, logger.With("component", "backup"), func(s backup.Status) {
		hub.Broadcast(ws.Message{Type: "backup_status"})
	})

	// Push is optional: without VAPID keys the endpoints stay unregistered
	// and the feed router only notifies the websocket hub.
	pushLogger := logger.With("component", "push")
	var pushSvc *push.Service
	var pushH *handler.PushHandler
	var reminder *push.Reminder
	notifiers := feed.MultiNotifier{hub}
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey)
		pushH = handler.NewPushHandler(pushStore, pushSvc, pushLogger)
		reminder = push.NewReminder(pushSvc, pushStore, eventStore, resolver, pushLogger)
		notifiers = append(notifiers, push.NewNotifier(pushSvc, pushStore, groupStore, eventStore, pushLogger))
	}

	routerOpts := []feed.RouterOption{feed.WithNotifier(notifiers)}
	if v, err := settingsStore.Get("feed_edit_throttle_hours"); err == nil {
		if hours, err := strconv.Atoi(v); err == nil && hours >= 0 {
			routerOpts = append(routerOpts, feed.WithEditThrottle(time.Duration(hours)*time.Hour))
		}
	}
	router := feed.NewRouter(activityStore, assocStore, logger.With("component", "feed"), routerOpts...)

	return &Server{
		db:              db,
		hub:             hub,
		authH:           handler.NewAuthHandler(userStore, sessionStore, signinCodeStore, emailClient, logger.With("component", "auth")),
		eventH:          handler.NewEventHandler(eventStore, assocStore, resolver, router, logger.With("component", "event")),
		groupH:          handler.NewGroupHandler(groupStore, assocStore, eventStore, router, logger.With("component", "group")),
		feedH:           handler.NewFeedHandler(activityStore, logger.With("component", "feed")),
		calendarH:       handler.NewCalendarHandler(eventStore, resolver, logger.With("component", "calendar")),
		friendH:         handler.NewFriendHandler(friendStore, userStore, logger.With("component", "friend")),
		pushH:           pushH,
		backupH:         handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup")),
		settingsH:       handler.NewSettingsHandler(settingsStore, backupMgr),
		sessionStore:    sessionStore,
		signinCodeStore: signinCodeStore,
		rateLimiter:     middleware.NewRateLimiter(),
		backupManager:   backupMgr,
		pushReminder:    reminder,
		logger:          logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// SigninCodeStore returns the sign-in code store for cleanup tasks.
func (s *Server) SigninCodeStore() *store.SigninCodeStore {
	return s.signinCodeStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushReminder returns the event reminder loop, nil when push is disabled.
func (s *Server) PushReminder() *push.Reminder {
	return s.pushReminder
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/auth/request-code", s.rateLimitedHandler(s.authH.RequestCode))
	outerMux.HandleFunc("POST /api/auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Events
	mux.HandleFunc("POST /api/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events", s.eventH.List)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)
	mux.HandleFunc("GET /api/events/{id}/occurrences", s.eventH.Occurrences)

	// Groups
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.HandleFunc("GET /api/groups/{id}", s.groupH.Get)
	mux.HandleFunc("PUT /api/groups/{id}", s.groupH.Update)
	mux.HandleFunc("DELETE /api/groups/{id}", s.groupH.Delete)
	mux.HandleFunc("POST /api/groups/{id}/members", s.groupH.Join)
	mux.HandleFunc("DELETE /api/groups/{id}/members", s.groupH.Leave)
	mux.HandleFunc("GET /api/groups/{id}/members", s.groupH.ListMembers)

	// Event/group connections
	mux.HandleFunc("POST /api/groups/{id}/events/{event_id}", s.groupH.ConnectEvent)
	mux.HandleFunc("DELETE /api/groups/{id}/events/{event_id}", s.groupH.DisconnectEvent)
	mux.HandleFunc("GET /api/groups/{id}/events", s.groupH.ListEvents)

	// Activity feeds
	mux.HandleFunc("GET /api/feed", s.feedH.Sitewide)
	mux.HandleFunc("GET /api/groups/{id}/feed", s.feedH.GroupFeed)

	// Calendars
	mux.HandleFunc("GET /api/calendar", s.calendarH.MyCalendar)
	mux.HandleFunc("GET /api/users/{id}/calendar", s.calendarH.UserCalendar)
	mux.HandleFunc("GET /api/groups/{id}/calendar", s.calendarH.GroupCalendar)

	// Friends
	mux.HandleFunc("POST /api/friends", s.friendH.Add)
	mux.HandleFunc("GET /api/friends", s.friendH.List)
	mux.HandleFunc("DELETE /api/friends/{id}", s.friendH.Remove)

	// Push notifications
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("GET /api/push/preferences", s.pushH.GetPreferences)
		mux.HandleFunc("PUT /api/push/preferences", s.pushH.UpdatePreferences)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	// Backups
	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("POST /api/backups", s.backupH.RunNow)
	mux.HandleFunc("GET /api/backups/status", s.backupH.Status)
	mux.HandleFunc("POST /api/backups/{id}/restore", s.backupH.Restore)
	mux.HandleFunc("GET /api/backups/{id}/download", s.backupH.Download)

	// Settings
	mux.HandleFunc("GET /api/settings/feed", s.settingsH.GetFeed)
	mux.HandleFunc("PUT /api/settings/feed", s.settingsH.UpdateFeed)
	mux.HandleFunc("GET /api/settings/backup", s.settingsH.GetBackup)
	mux.HandleFunc("PUT /api/settings/backup", s.settingsH.UpdateBackup)
	mux.HandleFunc("GET /api/settings/s3", s.settingsH.GetS3)
	mux.HandleFunc("PUT /api/settings/s3", s.settingsH.UpdateS3)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))
}
