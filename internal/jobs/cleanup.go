package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const cleanupTimeout = 30 * time.Second

// Expirer deletes rows whose lifetime has passed.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob purges expired dashboard logins and dead portal tokens. Deleting
// a login row is itself a change event, so dashboards still open on it end.
type CleanupJob struct {
	authSessions Expirer
	portalTokens Expirer
	interval     time.Duration
	done         chan struct{}
	wg           sync.WaitGroup
}

func NewCleanupJob(authSessions, portalTokens Expirer, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		authSessions: authSessions,
		portalTokens: portalTokens,
		interval:     interval,
		done:         make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop waits for an in-flight pass to finish.
func (j *CleanupJob) Stop() {
	close(j.done)
	j.wg.Wait()
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	j.runCleanup(ctx, "auth sessions", j.authSessions)
	j.runCleanup(ctx, "portal tokens", j.portalTokens)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, repo Expirer) {
	if repo == nil {
		return
	}
	count, err := repo.DeleteExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
