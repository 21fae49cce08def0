package background

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fleurease/fleurease-api/internal/cache"
	"github.com/fleurease/fleurease-api/internal/metrics"
	"github.com/fleurease/fleurease-api/internal/models"
)

const (
	sourceQueue = "queue"
	sourceSweep = "sweep"

	outcomeDeleted   = "deleted"
	outcomeRequeued  = "requeued"
	outcomeAbandoned = "abandoned"
	outcomeFailed    = "failed"
)

// AccountStore is the slice of the account repository the cleanup job needs
type AccountStore interface {
	ListStaleUnverified(ctx context.Context, cutoff time.Time, limit int) ([]*models.Account, error)
	Delete(ctx context.Context, id string) error
}

// AvatarDeleter removes hosted avatar images
type AvatarDeleter interface {
	Delete(ctx context.Context, publicID string) error
}

// CleanupConfig tunes the cleanup job
type CleanupConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration // how long after its verification window an unverified account survives
	MaxAttempts int           // queue entries are dropped after this many failed attempts
	SweepLimit  int
}

// CleanupManager periodically removes accounts left behind by failed
// registrations: those a compensating delete could not remove, and those
// whose verification window closed long ago.
type CleanupManager struct {
	accounts AccountStore
	avatars  AvatarDeleter
	orphans  cache.OrphanQueue
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      CleanupConfig
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	accounts AccountStore,
	avatars AvatarDeleter,
	orphans cache.OrphanQueue,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg CleanupConfig,
) *CleanupManager {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.SweepLimit <= 0 {
		cfg.SweepLimit = 100
	}
	return &CleanupManager{
		accounts: accounts,
		avatars:  avatars,
		orphans:  orphans,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.cfg.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

// RunOnce drains the orphan queue and then sweeps stale unverified accounts.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cm.drainOrphans(runCtx)
	cm.sweepStale(runCtx)
}

// drainOrphans processes at most the entries present when it starts, so a
// re-queued entry waits for the next run.
func (cm *CleanupManager) drainOrphans(ctx context.Context) {
	pending, err := cm.orphans.Len(ctx)
	if err != nil {
		cm.logger.Error("failed to read orphan queue length", slog.Any("error", err))
		return
	}

	for i := int64(0); i < pending; i++ {
		orphan, ok, err := cm.orphans.Pop(ctx)
		if err != nil {
			cm.logger.Error("failed to pop orphan", slog.Any("error", err))
			return
		}
		if !ok {
			return
		}

		if err := cm.removeOrphan(ctx, orphan); err != nil {
			cm.retry(ctx, orphan, err)
			continue
		}
		cm.metrics.OrphanProcessed(sourceQueue, outcomeDeleted)
		cm.logger.Info("orphaned account removed",
			slog.String("user_id", orphan.AccountID),
			slog.String("avatar_public_id", orphan.AvatarPublicID),
		)
	}
}

func (cm *CleanupManager) removeOrphan(ctx context.Context, o cache.Orphan) error {
	if o.AccountID != "" {
		if err := cm.accounts.Delete(ctx, o.AccountID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return err
		}
	}
	if o.AvatarPublicID != "" {
		if err := cm.avatars.Delete(ctx, o.AvatarPublicID); err != nil {
			// The account row is gone; keep only the image in the retry.
			return &avatarError{err: err}
		}
	}
	return nil
}

type avatarError struct{ err error }

func (e *avatarError) Error() string { return "avatar delete: " + e.err.Error() }
func (e *avatarError) Unwrap() error { return e.err }

func (cm *CleanupManager) retry(ctx context.Context, o cache.Orphan, cause error) {
	var ae *avatarError
	if errors.As(cause, &ae) {
		o.AccountID = ""
	}
	o.Attempts++

	if o.Attempts >= cm.cfg.MaxAttempts {
		cm.metrics.OrphanProcessed(sourceQueue, outcomeAbandoned)
		cm.logger.Error("giving up on orphaned account",
			slog.String("user_id", o.AccountID),
			slog.String("avatar_public_id", o.AvatarPublicID),
			slog.Int("attempts", o.Attempts),
			slog.Any("error", cause),
		)
		return
	}

	if err := cm.orphans.Push(ctx, o); err != nil {
		cm.metrics.OrphanProcessed(sourceQueue, outcomeFailed)
		cm.logger.Error("failed to re-queue orphan", slog.Any("error", err), slog.Any("cause", cause))
		return
	}
	cm.metrics.OrphanProcessed(sourceQueue, outcomeRequeued)
	cm.logger.Warn("orphan cleanup failed, re-queued",
		slog.String("user_id", o.AccountID),
		slog.Int("attempts", o.Attempts),
		slog.Any("error", cause),
	)
}

// sweepStale deletes unverified accounts whose verification window closed
// more than GracePeriod ago. The avatar goes first so a failure leaves the
// row in place for the next sweep.
func (cm *CleanupManager) sweepStale(ctx context.Context) {
	cutoff := cm.now().Add(-cm.cfg.GracePeriod)
	stale, err := cm.accounts.ListStaleUnverified(ctx, cutoff, cm.cfg.SweepLimit)
	if err != nil {
		cm.logger.Error("failed to list stale accounts", slog.Any("error", err))
		return
	}

	deleted := 0
	for _, account := range stale {
		if account.Avatar.PublicID != "" {
			if err := cm.avatars.Delete(ctx, account.Avatar.PublicID); err != nil {
				cm.metrics.OrphanProcessed(sourceSweep, outcomeFailed)
				cm.logger.Warn("failed to delete stale account avatar",
					slog.String("user_id", account.ID),
					slog.Any("error", err),
				)
				continue
			}
		}
		if err := cm.accounts.Delete(ctx, account.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
			cm.metrics.OrphanProcessed(sourceSweep, outcomeFailed)
			cm.logger.Warn("failed to delete stale account",
				slog.String("user_id", account.ID),
				slog.Any("error", err),
			)
			continue
		}
		cm.metrics.OrphanProcessed(sourceSweep, outcomeDeleted)
		deleted++
	}

	if deleted > 0 {
		cm.logger.Info("stale unverified accounts removed", slog.Int("count", deleted))
	}
}
