// internal/domain/replenishment/scheduler.go
package replenishment

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"github.com/your-org/medsupply-backend/internal/config"
	"github.com/your-org/medsupply-backend/internal/domain/inventory"
	"github.com/your-org/medsupply-backend/internal/domain/order"
	"gorm.io/gorm"
)

// Scheduler runs the daily consumption and auto-order job. "Already ran
// today" is derived from a persisted run record, not from process lifetime,
// so a restarted instance neither skips nor repeats the day.
type Scheduler struct {
	config    *config.Config
	logger    *logrus.Logger
	db        *gorm.DB
	inventory *inventory.Service
	engine    *Engine
	locker    *redislock.Client
}

// NewScheduler creates the daily replenishment scheduler. locker may be nil;
// the persisted run claim still guarantees once-per-day execution.
func NewScheduler(cfg *config.Config, logger *logrus.Logger, db *gorm.DB, inventoryService *inventory.Service, engine *Engine, locker *redislock.Client) *Scheduler {
	return &Scheduler{
		config:    cfg,
		logger:    logger,
		db:        db,
		inventory: inventoryService,
		engine:    engine,
		locker:    locker,
	}
}

// Run blocks until ctx is cancelled, firing the daily job once the local
// clock passes the configured run hour.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.WithFields(logrus.Fields{
		"run_hour": s.config.Replenishment.DailyRunHour,
		"timezone": s.config.Replenishment.Timezone,
	}).Info("replenishment scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("replenishment scheduler stopped")
			return
		case <-time.After(time.Minute):
			now := time.Now().In(s.config.Location())
			if now.Hour() < s.config.Replenishment.DailyRunHour {
				continue
			}
			if err := s.RunDaily(ctx); err != nil {
				s.logger.Error("daily replenishment run failed: " + err.Error())
			}
		}
	}
}

// RunDaily executes the consumption decrement and per-client auto-order
// evaluation for the current business day. Idempotent per day: a second
// invocation finds the day's run record and returns without side effects.
func (s *Scheduler) RunDaily(ctx context.Context) error {
	loc := s.config.Location()
	now := time.Now().In(loc)
	runDate := now.Format("2006-01-02")
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, "lock:consumption-run", s.config.Replenishment.LockTTL, nil)
		if err == redislock.ErrNotObtained {
			s.logger.Debug("another instance holds the consumption run lock")
			return nil
		} else if err != nil {
			s.logger.Warn("error obtaining consumption run lock, proceeding on run claim: " + err.Error())
		} else {
			defer func() {
				_ = lock.Release(ctx)
			}()
		}
	}

	run := order.ConsumptionRun{
		RunDate:   runDate,
		StartedAt: now.UTC(),
	}
	if err := s.db.Create(&run).Error; err != nil {
		// The unique run_date index makes the claim race-safe: losing the
		// insert means the day already ran, is running, or died mid-run.
		var existing order.ConsumptionRun
		if lookupErr := s.db.Where("run_date = ?", runDate).First(&existing).Error; lookupErr != nil {
			return err
		}
		if existing.FinishedAt != nil {
			s.logger.WithFields(logrus.Fields{
				"run_date": runDate,
			}).Debug("consumption run already finished for today")
			return nil
		}
		if time.Since(existing.StartedAt) < s.config.Replenishment.LockTTL {
			s.logger.WithFields(logrus.Fields{
				"run_date": runDate,
			}).Debug("consumption run in progress")
			return nil
		}
		// An unfinished claim past the lock TTL belongs to a run that died
		// before finalizing. Take it over with a compare-and-swap on the old
		// started_at so only one instance wins; the per-entry decrement stamp
		// keeps the retried consumption pass idempotent.
		reclaim := s.db.Model(&order.ConsumptionRun{}).
			Where("id = ? AND finished_at IS NULL AND started_at = ?", existing.ID, existing.StartedAt).
			Update("started_at", now.UTC())
		if reclaim.Error != nil {
			return reclaim.Error
		}
		if reclaim.RowsAffected == 0 {
			s.logger.WithFields(logrus.Fields{
				"run_date": runDate,
			}).Debug("consumption run reclaimed by another instance")
			return nil
		}
		s.logger.WithFields(logrus.Fields{
			"run_date": runDate,
		}).Warn("reclaiming unfinished consumption run")
		run = existing
		run.StartedAt = now.UTC()
	}

	s.logger.WithFields(logrus.Fields{
		"run_date": runDate,
	}).Info("starting daily consumption run")

	decremented, err := s.inventory.ApplyDailyConsumption(dayStart)
	if err != nil {
		return err
	}

	clientIDs, err := s.inventory.GetAutoOrderClients()
	if err != nil {
		return err
	}

	processed := 0
	failed := 0
	for _, clientID := range clientIDs {
		if ctx.Err() != nil {
			break
		}
		// One client's failure must not abort the rest of the batch.
		if _, err := s.engine.ProcessClient(ctx, clientID); err != nil {
			failed++
			s.logger.WithFields(logrus.Fields{
				"client_id": clientID,
			}).Error("auto order processing failed: " + err.Error())
			continue
		}
		processed++
	}

	finished := time.Now().UTC()
	if err := s.db.Model(&order.ConsumptionRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"finished_at":         finished,
			"entries_decremented": decremented,
			"clients_processed":   processed,
			"clients_failed":      failed,
		}).Error; err != nil {
		s.logger.Warn("failed to finalize consumption run record: " + err.Error())
	}

	s.logger.WithFields(logrus.Fields{
		"run_date":            runDate,
		"entries_decremented": decremented,
		"clients_processed":   processed,
		"clients_failed":      failed,
	}).Info("daily consumption run finished")

	return nil
}
