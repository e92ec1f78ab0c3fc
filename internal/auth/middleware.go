package auth

import (
	"context"
	"net/http"

	"github.com/slugnotes/slugnotes/internal/urlutil"
)

// Context keys for auth data
type contextKey string

const userIDKey contextKey = "userID"

// Middleware provides authentication middleware for HTTP handlers.
type Middleware struct {
	sessionService *SessionService
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(sessionService *SessionService) *Middleware {
	return &Middleware{sessionService: sessionService}
}

// RequireAuthWithRedirect requires a valid session. Anonymous or invalid
// sessions are redirected to the login page with the original URL carried
// in the next parameter, so login can return the user where they started.
func (m *Middleware) RequireAuthWithRedirect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.authenticate(r)
		if !ok {
			http.Redirect(w, r, urlutil.LoginRedirectURL(r.URL.RequestURI()), http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth requires a valid session and responds 401 otherwise.
// Intended for endpoints that are not navigated to by a browser.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.authenticate(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth adds user info to the context when a valid session is
// present and continues without it otherwise.
func (m *Middleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := m.authenticate(r); ok {
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) authenticate(r *http.Request) (string, bool) {
	sessionID, err := GetFromRequest(r)
	if err != nil {
		return "", false
	}
	userID, err := m.sessionService.Validate(r.Context(), sessionID)
	if err != nil {
		return "", false
	}
	return userID, true
}

// GetUserID retrieves the user ID from the request context.
// Returns empty string if no user is authenticated.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// IsAuthenticated checks if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}
