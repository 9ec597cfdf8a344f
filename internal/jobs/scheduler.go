package jobs

import (
	"log"

	"github.com/robfig/cron/v3"

	"github.com/approvers/sponsor-linked-role/internal/store"
)

// Scheduler manages background jobs
type Scheduler struct {
	cron  *cron.Cron
	store *store.GormStore
}

// NewScheduler creates a new job scheduler for the database-backed store.
// The embedded and valkey backends expire keys natively and need no jobs.
func NewScheduler(s *store.GormStore) *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		store: s,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	// Purge expired state mappings and credentials every 10 minutes
	s.cron.AddFunc("@every 10m", func() {
		s.purgeExpiredCredentials()
	})

	s.cron.Start()
	log.Println("Job scheduler started")

	// Run purge immediately on start
	go s.purgeExpiredCredentials()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Job scheduler stopped")
}

// purgeExpiredCredentials removes store rows whose TTL has elapsed. Reads
// already filter on expiry, so this is hygiene rather than correctness.
func (s *Scheduler) purgeExpiredCredentials() {
	deleted, err := s.store.PurgeExpired()
	if err != nil {
		log.Printf("Cleanup: Failed to purge expired credentials: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Cleanup: Purged %d expired credentials", deleted)
	}
}
