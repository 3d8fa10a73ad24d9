package asn

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"identityguard/internal/adapters"
	"identityguard/internal/magic"
)

// Sweeper deletes AsnEntry rows older than a configured threshold on a cron
// schedule (spec §4.3.2). Deletion runs inside a single transaction via
// adapters.AsnEntryStore.DeleteStale, so concurrent lookups never observe a
// partial delete.
type Sweeper struct {
	store     adapters.AsnEntryStore
	threshold time.Duration
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewSweeper constructs a Sweeper deleting rows older than threshold
// (defaulting to magic.DefaultStaleThreshold).
func NewSweeper(store adapters.AsnEntryStore, threshold time.Duration, logger *slog.Logger) *Sweeper {
	if threshold <= 0 {
		threshold = magic.DefaultStaleThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		threshold: threshold,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start registers the sweep to run on spec (standard 5-field cron syntax)
// and starts the scheduler's own goroutine. Callers should defer Stop.
func (s *Sweeper) Start(spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		removed, err := s.store.DeleteStale(context.Background(), s.threshold, time.Now())
		if err != nil {
			s.logger.Error("asn stale sweep failed", slog.Any("error", err))
			return
		}
		s.logger.Info("asn stale sweep completed", slog.Int64("removed", removed))
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// SweepOnce runs the deletion immediately, outside the cron schedule —
// exposed for the identityguardd sweep-asn subcommand.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	return s.store.DeleteStale(ctx, s.threshold, time.Now())
}
