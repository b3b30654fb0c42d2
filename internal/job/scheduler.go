// Package job schedules the recurring sync runs.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/deck-tracker/internal/logging"
	"github.com/deck-tracker/internal/models"
	"github.com/deck-tracker/internal/service"
	"github.com/deck-tracker/internal/storage"
	"github.com/deck-tracker/internal/types"
)

// Syncer is one schedulable sync flow.
type Syncer interface {
	SyncAll(ctx context.Context, opts service.SyncOptions) (*service.SyncResult, error)
}

// Scheduler runs the sync services on their cron specs. Jobs are independent:
// a panicking or failing run is logged and recorded, and never stops the
// scheduler or the other jobs.
type Scheduler struct {
	cron    *cron.Cron
	status  *storage.SyncStatusRepository
	cache   *storage.CacheService
	logger  *logging.Logger
	baseCtx context.Context
}

// NewScheduler creates a scheduler using the standard five-field cron format.
// cache may be nil when Redis is not configured.
func NewScheduler(status *storage.SyncStatusRepository, cache *storage.CacheService, logger *logging.Logger, baseCtx context.Context) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Scheduler{
		cron:    cron.New(),
		status:  status,
		cache:   cache,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers a sync flow under the given cron spec.
func (s *Scheduler) Add(spec string, source types.SyncSource, syncer Syncer) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.runJob(source, syncer)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s sync: %w", source, err)
	}
	return nil
}

// RunNow triggers one sync flow immediately, outside its schedule.
func (s *Scheduler) RunNow(source types.SyncSource, syncer Syncer) {
	s.runJob(source, syncer)
}

func (s *Scheduler) runJob(source types.SyncSource, syncer Syncer) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("source", string(source)).Errorf("Sync job panicked: %v", r)
			s.record(source, &models.SyncStatus{
				Source:     source,
				LastSyncAt: time.Now().UTC(),
				Status:     models.SyncStatusFailed,
			})
		}
	}()

	s.logger.WithField("source", string(source)).Info("Starting scheduled sync")

	result, err := syncer.SyncAll(s.baseCtx, service.SyncOptions{})
	if err != nil {
		s.logger.WithError(err).WithField("source", string(source)).Error("Sync job failed")
		s.record(source, &models.SyncStatus{
			Source:     source,
			LastSyncAt: time.Now().UTC(),
			Status:     models.SyncStatusFailed,
		})
		return
	}

	s.record(source, &models.SyncStatus{
		Source:      source,
		LastSyncAt:  time.Now().UTC(),
		Status:      result.Status(),
		RecordCount: result.Succeeded,
	})

	if result.Succeeded > 0 {
		s.invalidateCaches(source)
	}
}

// invalidateCaches drops cached responses made stale by a sync that wrote
// rows, so readers never see pages older than one sync cycle.
func (s *Scheduler) invalidateCaches(source types.SyncSource) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, keyType := range []storage.CacheKeyType{storage.CacheKeyGames, storage.CacheKeyStats, storage.CacheKeyDeals} {
		if err := s.cache.InvalidatePrefix(ctx, keyType); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"source": string(source),
				"cache":  string(keyType),
			}).Error("Failed to invalidate cache after sync")
		}
	}
}

func (s *Scheduler) record(source types.SyncSource, status *models.SyncStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.status.Upsert(ctx, status); err != nil {
		s.logger.WithError(err).WithField("source", string(source)).Error("Failed to record sync status")
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("Sync scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Sync scheduler stopped")
}
