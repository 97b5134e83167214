package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dperrin/gather/internal/auth"
	"github.com/dperrin/gather/internal/email"
	"github.com/dperrin/gather/internal/middleware"
	"github.com/dperrin/gather/internal/store"
)

const sessionMaxAge = 30 * 24 * 60 * 60 // 30 days, matches session expiry

type AuthHandler struct {
	users       *store.UserStore
	sessions    *store.SessionStore
	codes       *store.SigninCodeStore
	emailClient *email.Client
	logger      *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	cs *store.SigninCodeStore,
	ec *email.Client,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:       us,
		sessions:    ss,
		codes:       cs,
		emailClient: ec,
		logger:      logger,
	}
}

type requestCodeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// RequestCode handles POST /api/auth/request-code. It issues a sign-in code
// for existing users and registers new ones, always answering the same way
// to prevent account enumeration.
func (h *AuthHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if emailAddr == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	purpose := "login"
	user, err := h.users.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("signin lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		purpose = "register"
		if _, err := h.users.Create(emailAddr, strings.TrimSpace(req.Name)); err != nil {
			h.logger.Error("create user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	code, err := h.codes.Create(emailAddr, purpose)
	if err != nil {
		h.logger.Error("create signin code", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.emailClient.SendSigninCode(emailAddr, code.Code, purpose); err != nil {
		h.logger.Error("send signin code", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "code sent"})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Verify handles POST /api/auth/verify. A valid code creates a session and
// sets the session cookie.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	code := strings.TrimSpace(req.Code)
	if emailAddr == "" || code == "" {
		writeError(w, http.StatusBadRequest, "email and code are required")
		return
	}

	sc, err := h.codes.Verify(emailAddr, code)
	if err != nil {
		h.logger.Error("verify signin code", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sc == nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired code")
		return
	}

	user, err := h.users.GetByEmail(emailAddr)
	if err != nil || user == nil {
		h.logger.Error("verify user lookup", "error", err)
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	sess, err := h.sessions.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	writeJSON(w, http.StatusOK, user)
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(cookie.Value); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	user, err := h.users.GetByID(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
