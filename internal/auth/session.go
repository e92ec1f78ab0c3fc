package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slugnotes/slugnotes/internal/db"
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// Session configuration
const (
	DefaultSessionDuration = 30 * 24 * time.Hour
	SessionIDLength        = 32 // 256 bits
	SessionCookieName      = "session_id"
)

// Session represents an active user session.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionService handles session management.
type SessionService struct {
	db       *db.AppDB
	duration time.Duration
	secure   bool
	clock    Clock
}

// NewSessionService creates a new session service. A non-positive duration
// falls back to DefaultSessionDuration.
func NewSessionService(appDB *db.AppDB, duration time.Duration) *SessionService {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionService{
		db:       appDB,
		duration: duration,
		clock:    realClock{},
	}
}

// SetSecure controls the Secure attribute on session cookies. Deployments
// served over https must enable it so the session ID never rides plain HTTP.
func (s *SessionService) SetSecure(secure bool) {
	s.secure = secure
}

// SetClock replaces the clock used by the service. Intended for testing.
func (s *SessionService) SetClock(c Clock) {
	s.clock = c
}

// Duration returns the configured session lifetime.
func (s *SessionService) Duration() time.Duration {
	return s.duration
}

// Create creates a new session for a user.
// Returns the session ID which should be stored in a cookie.
func (s *SessionService) Create(ctx context.Context, userID string) (string, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return "", fmt.Errorf("generate session ID: %w", err)
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.duration)

	_, err = s.db.DB().ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`, sessionID, userID, expiresAt.Unix(), now.Unix())
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	return sessionID, nil
}

// Validate checks if a session is valid and returns the user ID.
// Expired sessions are indistinguishable from missing ones.
func (s *SessionService) Validate(ctx context.Context, sessionID string) (string, error) {
	var userID string
	err := s.db.DB().QueryRowContext(ctx, `
		SELECT user_id FROM sessions WHERE session_id = ? AND expires_at > ?
	`, sessionID, s.clock.Now().Unix()).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("get session: %w", err)
	}
	return userID, nil
}

// Delete removes a session (logout).
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.DB().ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteByUserID removes all sessions for a user.
func (s *SessionService) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := s.db.DB().ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// Cleanup removes all expired sessions.
// This should be called periodically by a background goroutine.
func (s *SessionService) Cleanup(ctx context.Context) error {
	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return nil
}

// Cookie helpers

// SetCookie sets the session cookie on the response.
func (s *SessionService) SetCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.duration.Seconds()),
	})
}

// ClearCookie removes the session cookie.
func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1, // Delete immediately
	})
}

// GetFromRequest retrieves the session ID from the request cookie.
func GetFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	return cookie.Value, nil
}

func generateSessionID() (string, error) {
	bytes := make([]byte, SessionIDLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
