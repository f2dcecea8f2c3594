package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/handoff/handoff-server/internal/audit"
	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/model"
)

const SessionCookie = "handoff_session"

type SessionAuthenticator interface {
	CurrentUser(ctx context.Context, token string) (*model.User, *model.AuthSession, error)
}

// SessionAuthMiddleware admits dashboard requests carrying a live session,
// from the session cookie or an Authorization bearer token.
type SessionAuthMiddleware struct {
	auth SessionAuthenticator
}

func NewSessionAuthMiddleware(auth SessionAuthenticator) *SessionAuthMiddleware {
	return &SessionAuthMiddleware{auth: auth}
}

func (m *SessionAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := SessionToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Unauthorized"))
			return
		}

		user, session, err := m.auth.CurrentUser(r.Context(), token)
		if err != nil {
			log.Error().Err(err).Msg("session middleware: lookup failed")
			writeError(w, err)
			return
		}
		if user == nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			ClearSessionCookie(w)
			writeError(w, apperrors.SessionExpired())
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, AuthSessionContextKey, session)
		ctx = WithScope(ctx, model.OwnerScope(user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionToken reads the session cookie, falling back to a bearer token.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func SetSessionCookie(w http.ResponseWriter, token string, maxAge time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
