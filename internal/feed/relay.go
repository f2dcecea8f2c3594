package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/handoff/handoff-server/internal/config"
	"github.com/handoff/handoff-server/internal/database"
)

const listenerPingInterval = 90 * time.Second

// Publisher is the part of Manager the relay needs.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
	Resync(ctx context.Context) error
}

// Relay forwards Postgres change notifications to the feed bus. Notifications
// arrive in commit order, so that is the publish order as well.
type Relay struct {
	databaseURL string
	publisher   Publisher
}

func NewRelay(databaseURL string, publisher Publisher) *Relay {
	return &Relay{databaseURL: databaseURL, publisher: publisher}
}

// Run listens until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	listener := pq.NewListener(r.databaseURL, config.FeedListenerMinReconnect, config.FeedListenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			switch ev {
			case pq.ListenerEventConnected:
				log.Info().Msg("change listener connected")
			case pq.ListenerEventDisconnected:
				log.Warn().Err(err).Msg("change listener disconnected")
			case pq.ListenerEventReconnected:
				log.Warn().Msg("change listener reconnected")
			case pq.ListenerEventConnectionAttemptFailed:
				log.Error().Err(err).Msg("change listener connection attempt failed")
			}
		})
	defer listener.Close()

	if err := listener.Listen(database.ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", database.ChangeChannel, err)
	}

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("change relay stopped")
			return nil

		case n := <-listener.Notify:
			// nil follows a reconnect
			if n == nil {
				if err := r.HandleReconnect(ctx); err != nil {
					log.Error().Err(err).Msg("failed to broadcast feed resync")
				}
				continue
			}
			if err := r.HandleNotification(ctx, n.Extra); err != nil {
				log.Error().Err(err).Msg("failed to relay change")
			}

		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				log.Warn().Err(err).Msg("change listener ping failed")
			}
		}
	}
}

// HandleReconnect tells every subscriber to reload, since changes committed
// while the listener was disconnected were never notified.
func (r *Relay) HandleReconnect(ctx context.Context) error {
	log.Warn().Msg("change listener gap, broadcasting resync")
	return r.publisher.Resync(ctx)
}

// HandleNotification decodes one trigger payload and publishes it.
func (r *Relay) HandleNotification(ctx context.Context, payload string) error {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return fmt.Errorf("decode change: %w", err)
	}
	switch change.Type {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
	default:
		return fmt.Errorf("unexpected change type %q", change.Type)
	}

	log.Debug().
		Str("table", change.Table).
		Str("type", string(change.Type)).
		Str("id", change.Key("id")).
		Msg("relaying change")

	return r.publisher.Publish(ctx, change)
}
