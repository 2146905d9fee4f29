package statusd

import (
	"context"
	"log/slog"
	"time"

	"github.com/tmarchal/taskdeck/internal/auth"
	"github.com/tmarchal/taskdeck/internal/task"
	"github.com/tmarchal/taskdeck/internal/team"
)

// Syncer periodically resynchronizes the stores against the backend so the
// status endpoints serve fresh snapshots.
type Syncer struct {
	authStore *auth.Store
	taskStore *task.Store
	teamStore *team.Store
	interval  time.Duration
	done      chan struct{}
}

// NewSyncer creates a Syncer resyncing every interval.
func NewSyncer(authStore *auth.Store, taskStore *task.Store, teamStore *team.Store, interval time.Duration) *Syncer {
	return &Syncer{
		authStore: authStore,
		taskStore: taskStore,
		teamStore: teamStore,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Start resyncs once immediately, then on a timer. It blocks until Stop is
// called or the context is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	s.sync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sync(ctx)
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *Syncer) Stop() {
	close(s.done)
}

// sync refreshes every store. The session may be dropped mid-loop when the
// backend rejects the token; the next tick then sees an unauthenticated store
// and skips the authed fetches.
func (s *Syncer) sync(ctx context.Context) {
	if !s.authStore.IsAuthenticated() {
		slog.Warn("skipping resync: not authenticated")
		return
	}

	s.authStore.LoadUsers(ctx)
	s.taskStore.Fetch(ctx)
	s.teamStore.Fetch(ctx, true)
}
