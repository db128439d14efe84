package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hithere-devs/email-saas/internal/db"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Scheduler periodically runs incremental syncs for every account that has
// completed its initial sync. Accounts still waiting on an initial sync are
// skipped; so are accounts with a run already in flight.
type Scheduler struct {
	pool     *pgxpool.Pool
	service  *Service
	interval time.Duration
}

// NewScheduler creates a scheduler ticking at the given interval.
func NewScheduler(pool *pgxpool.Pool, service *Service, interval time.Duration) *Scheduler {
	return &Scheduler{pool: pool, service: service, interval: interval}
}

// Run blocks until the context is cancelled, kicking off one sweep per tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Sync scheduler stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	accounts, err := db.ListAccounts(ctx, s.pool)
	if err != nil {
		log.Printf("Warning: sync sweep failed to list accounts: %v", err)
		return
	}

	for _, account := range accounts {
		if account.NextDeltaToken == nil {
			continue
		}

		if err := s.service.SyncIncremental(ctx, account.ID); err != nil {
			if errors.Is(err, ErrSyncInProgress) {
				continue
			}
			log.Printf("Warning: incremental sync failed for account %s: %v", account.ID, err)
		}
	}
}
