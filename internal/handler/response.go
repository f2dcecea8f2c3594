package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/handoff/handoff-server/internal/audit"
	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/httputil"
	"github.com/handoff/handoff-server/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// respond writes err for r. Scope violations are audited and I/O failures logged.
func respond(w http.ResponseWriter, r *http.Request, err error) {
	switch code := apperrors.GetCode(err); {
	case code == apperrors.ErrCodeForbidden:
		ev := audit.Event{
			Type:    audit.EventPermissionDenied,
			Details: map[string]interface{}{"path": r.URL.Path, "method": r.Method},
		}
		if scope, ok := middleware.GetScope(r.Context()); ok {
			ev.OwnerUserID = scope.OwnerUserID
			ev.ClientID = scope.ClientID
		}
		audit.LogFromRequest(r, ev)
	case apperrors.IsTransient(err):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	httputil.WriteError(w, err)
}

type successResponse struct {
	Success bool `json:"success"`
}

var okResponse = successResponse{Success: true}
