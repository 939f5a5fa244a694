package rest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rzbill/subrelay/pkg/log"
	"github.com/rzbill/subrelay/pkg/types"
)

const (
	// SessionCookie is the name of the admin session cookie.
	SessionCookie = "session"

	bearerPrefix = "Bearer "
)

// SessionService issues and checks admin sessions.
type SessionService interface {
	Issue(ctx context.Context, ttl time.Duration) (*types.Session, string, error)
	Validate(ctx context.Context, token string) (bool, error)
	Revoke(ctx context.Context, token string) error
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

// sessionToken extracts the admin token from the session cookie or a bearer
// Authorization header.
func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	return ""
}

// authenticated reports whether r carries a live session. Store failures
// count as unauthenticated.
func (h *handlers) authenticated(r *http.Request) bool {
	token := sessionToken(r)
	if token == "" {
		return false
	}
	ok, err := h.sessions.Validate(r.Context(), token)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("Failed to validate session", log.Err(err))
		return false
	}
	return ok
}

// requireSession rejects requests without a live session.
func (h *handlers) requireSession() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.authenticated(r) {
				h.logger.WithContext(r.Context()).Debug("Rejected unauthenticated request", log.Str("path", r.URL.Path))
				writeMessage(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	logger := h.logger.WithContext(r.Context())

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.checkPassword(req.Password) {
		logger.Warn("Admin login failed", log.Str("remote_addr", r.RemoteAddr))
		writeMessage(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	_, token, err := h.sessions.Issue(r.Context(), h.sessionTTL)
	if err != nil {
		logger.Error("Failed to issue session", log.Err(err))
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	logger.Info("Admin logged in", log.Str("remote_addr", r.RemoteAddr))
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Token: token})
}

func (h *handlers) checkPassword(password string) bool {
	if h.adminPassword == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(h.adminPassword)) == 1
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if token := sessionToken(r); token != "" {
		if err := h.sessions.Revoke(r.Context(), token); err != nil {
			h.logger.WithContext(r.Context()).Error("Failed to revoke session", log.Err(err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	writeMessage(w, http.StatusOK, "Logged out")
}
