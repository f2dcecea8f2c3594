package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/handoff/handoff-server/internal/config"
	"github.com/handoff/handoff-server/internal/middleware"
	"github.com/handoff/handoff-server/internal/session"
)

// Event types written on the stream.
const (
	eventSnapshot = "snapshot"
	eventEnded    = "ended"
)

type sseEvent struct {
	Type string
	Data json.RawMessage
}

type snapshotEvent struct {
	Resource session.Resource `json:"resource,omitempty"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// EventsHandler streams one session controller per connection. Every
// snapshot the controller publishes is written as a "snapshot" event; when
// the session becomes unavailable or terminated the final view is sent as
// "ended" and the stream closes.
type EventsHandler struct {
	deps      session.Deps
	heartbeat time.Duration
}

func NewEventsHandler(deps session.Deps) *EventsHandler {
	return &EventsHandler{
		deps:      deps,
		heartbeat: config.EventStreamHeartbeat,
	}
}

// Portal opens a portal session from the {token} route parameter.
func (h *EventsHandler) Portal(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.serve(w, r, func(ctx context.Context, c *session.Controller) error {
		return c.OpenPortal(ctx, token)
	})
}

// Dashboard opens a dashboard session from the session cookie or bearer token.
func (h *EventsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r)
	h.serve(w, r, func(ctx context.Context, c *session.Controller) error {
		return c.OpenDashboard(ctx, token)
	})
}

func (h *EventsHandler) serve(w http.ResponseWriter, r *http.Request, open func(context.Context, *session.Controller) error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	ctx := r.Context()
	ctrl := session.New(h.deps)
	defer ctrl.Close()

	if err := open(ctx, ctrl); err != nil {
		respond(w, r, err)
		return
	}
	if project := r.URL.Query().Get("project"); project != "" {
		if err := ctrl.SelectProject(ctx, project); err != nil {
			respond(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	scope := ctrl.Scope()
	logger := log.With().
		Str("kind", string(scope.Kind)).
		Str("ownerUserId", scope.OwnerUserID).
		Str("clientId", scope.ClientID).
		Logger()
	logger.Info().Msg("event stream opened")

	if err := h.sendEvent(w, flusher, eventSnapshot, snapshotEvent{Snapshot: ctrl.Snapshot()}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("event stream closed by client")
			return

		case <-ctrl.Done():
			if err := h.sendEvent(w, flusher, eventEnded, snapshotEvent{Snapshot: ctrl.Snapshot()}); err != nil {
				logger.Debug().Err(err).Msg("failed to send final snapshot")
			}
			logger.Info().Str("state", string(ctrl.State())).Msg("event stream ended by session")
			return

		case upd := <-ctrl.Updates():
			if err := h.sendEvent(w, flusher, eventSnapshot, snapshotEvent{
				Resource: upd.Resource,
				Snapshot: upd.Snapshot,
			}); err != nil {
				logger.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				logger.Debug().Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sseEvent{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
