package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/router-for-me/StationPortal/internal/config"
	"github.com/router-for-me/StationPortal/internal/metrics"
	"github.com/router-for-me/StationPortal/internal/models"
	internalsettings "github.com/router-for-me/StationPortal/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultDeleteBatchSize = 5000
	maxDeleteBatchesPerRun = 2000
)

// RetentionCleaner removes old session history and stale active sessions on a cron schedule.
type RetentionCleaner struct {
	db            *gorm.DB
	schedule      string
	retentionDays int
	staleAfter    time.Duration
	batchSize     int
	metrics       *metrics.Collectors
	cron          *cron.Cron
	now           func() time.Time
}

// NewRetentionCleaner creates a cleaner. Active sessions older than staleAfter are
// treated as expired; staleAfter is normally the token lifetime.
func NewRetentionCleaner(db *gorm.DB, cfg config.SessionsConfig, staleAfter time.Duration, m *metrics.Collectors) *RetentionCleaner {
	if db == nil {
		return nil
	}
	schedule := cfg.CleanupSchedule
	if schedule == "" {
		schedule = config.DefaultCleanupSchedule
	}
	return &RetentionCleaner{
		db:            db,
		schedule:      schedule,
		retentionDays: cfg.RetentionDays,
		staleAfter:    staleAfter,
		batchSize:     defaultDeleteBatchSize,
		metrics:       m,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Start schedules the cleanup and stops the scheduler when ctx is done.
func (c *RetentionCleaner) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.cron = cron.New(cron.WithLocation(time.UTC))
	if _, errAdd := c.cron.AddFunc(c.schedule, func() { c.CleanupOnce(ctx) }); errAdd != nil {
		return fmt.Errorf("sessions: invalid cleanup schedule %q: %w", c.schedule, errAdd)
	}
	c.cron.Start()
	go func() {
		<-ctx.Done()
		<-c.cron.Stop().Done()
	}()
	log.Infof("session retention cleaner started (schedule=%s)", c.schedule)
	return nil
}

// RetentionDays returns the effective history retention; a DB setting overrides config.
func (c *RetentionCleaner) RetentionDays() int {
	return internalsettings.Int(internalsettings.SessionRetentionDaysKey, c.retentionDays)
}

// CleanupOnce runs one cleanup pass and returns the removed history and active rows.
func (c *RetentionCleaner) CleanupOnce(ctx context.Context) (int64, int64) {
	if c == nil || c.db == nil {
		return 0, 0
	}
	stale := c.expireStale(ctx)

	retentionDays := c.RetentionDays()
	if retentionDays <= 0 {
		return 0, stale
	}
	cutoff := c.now().AddDate(0, 0, -retentionDays)

	deleted := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.deleteBatch(ctx, cutoff)
		if err != nil {
			log.WithError(err).Warn("session retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deleted += n
	}
	if deleted > 0 {
		c.metrics.RecordSessionCleanup(deleted)
		log.Infof("session retention cleaner: deleted %d history rows (cutoff=%s retention_days=%d)", deleted, cutoff.Format(time.RFC3339), retentionDays)
	}
	return deleted, stale
}

func (c *RetentionCleaner) deleteBatch(ctx context.Context, cutoff time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Exec(`
		DELETE FROM session_histories
		WHERE id IN (
			SELECT id FROM session_histories
			WHERE logout_time IS NOT NULL AND logout_time < ?
			ORDER BY logout_time ASC
			LIMIT ?
		)
	`, cutoff, c.batchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// expireStale removes active sessions whose tokens can no longer be valid.
func (c *RetentionCleaner) expireStale(ctx context.Context) int64 {
	if c.staleAfter <= 0 {
		return 0
	}
	now := c.now()
	cutoff := now.Add(-c.staleAfter)
	details, _ := json.Marshal(map[string]string{"reason": ReasonExpired})

	var removed int64
	errTx := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if errPluck := tx.Model(&models.ActiveSession{}).Where("login_time < ?", cutoff).Pluck("session_id", &ids).Error; errPluck != nil {
			return errPluck
		}
		if len(ids) == 0 {
			return nil
		}
		errClose := tx.Model(&models.SessionHistory{}).
			Where("session_id IN ? AND logout_time IS NULL", ids).
			Updates(map[string]any{"logout_time": now, "details": datatypes.JSON(details)}).Error
		if errClose != nil {
			return errClose
		}
		res := tx.Where("session_id IN ?", ids).Delete(&models.ActiveSession{})
		removed = res.RowsAffected
		return res.Error
	})
	if errTx != nil {
		log.WithError(errTx).Warn("session retention cleaner: expire stale sessions failed")
		return 0
	}
	if removed > 0 {
		log.Debugf("session retention cleaner: expired %d stale active sessions", removed)
	}
	return removed
}
