package service

import (
	"context"
	"fmt"
	"log/slog"
	"storefront-payments/internal/client"
	"storefront-payments/internal/repository"
	"time"
)

const sweeperLockKey = "storefront:checkout-session-sweeper"

// SessionSweeper deletes expired checkout sessions on a fixed interval. With
// several replicas only the one holding the lock sweeps on a given tick.
type SessionSweeper struct {
	sessionRepo repository.SessionRepository
	locker      client.Locker
	interval    time.Duration
	logger      *slog.Logger
}

func NewSessionSweeper(sessionRepo repository.SessionRepository, locker client.Locker, interval time.Duration, logger *slog.Logger) *SessionSweeper {
	return &SessionSweeper{
		sessionRepo: sessionRepo,
		locker:      locker,
		interval:    interval,
		logger:      logger.With("component", "session_sweeper"),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logger.Warn("session sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce reports how many sessions it deleted; zero when another replica
// holds the lock.
func (s *SessionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	// the lease lapses just before the next tick
	ok, err := s.locker.TryLock(ctx, sweeperLockKey, s.interval-s.interval/10)
	if err != nil {
		return 0, fmt.Errorf("acquire sweeper lock: %w", err)
	}
	if !ok {
		s.logger.Debug("session sweep skipped, lock held elsewhere")
		return 0, nil
	}

	return s.sessionRepo.DeleteExpired(ctx)
}
