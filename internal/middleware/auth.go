package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/handoff/handoff-server/internal/audit"
	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/model"
	"github.com/handoff/handoff-server/internal/util"
)

type contextKey string

const (
	UserContextKey        contextKey = "user"
	AuthSessionContextKey contextKey = "authSession"
	PortalTokenContextKey contextKey = "portalToken"
	ScopeContextKey       contextKey = "scope"
)

func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

func GetAuthSession(ctx context.Context) *model.AuthSession {
	if session, ok := ctx.Value(AuthSessionContextKey).(*model.AuthSession); ok {
		return session
	}
	return nil
}

func GetPortalToken(ctx context.Context) *model.PortalToken {
	if pt, ok := ctx.Value(PortalTokenContextKey).(*model.PortalToken); ok {
		return pt
	}
	return nil
}

// GetScope returns the scope resolved for the request by SessionAuth or PortalAuth.
func GetScope(ctx context.Context) (model.Scope, bool) {
	scope, ok := ctx.Value(ScopeContextKey).(model.Scope)
	return scope, ok
}

func WithScope(ctx context.Context, scope model.Scope) context.Context {
	return context.WithValue(ctx, ScopeContextKey, scope)
}

type PortalTokenResolver interface {
	Resolve(ctx context.Context, token string) (*model.PortalToken, error)
}

// PortalAuthMiddleware resolves the {token} route parameter to a portal scope.
type PortalAuthMiddleware struct {
	tokens PortalTokenResolver
}

func NewPortalAuthMiddleware(tokens PortalTokenResolver) *PortalAuthMiddleware {
	return &PortalAuthMiddleware{tokens: tokens}
}

func (m *PortalAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		pt, err := m.tokens.Resolve(r.Context(), token)
		if err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeInvalidToken) {
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventPortalTokenInvalid,
					Details: map[string]interface{}{"token": util.MaskToken(token)},
				})
			}
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), PortalTokenContextKey, pt)
		ctx = WithScope(ctx, pt.Scope())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
