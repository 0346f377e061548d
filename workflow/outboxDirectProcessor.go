package workflow

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDirectProcessor handles outbox rows in-process when Pub/Sub is not configured.
type OutboxDirectProcessor struct {
	DB        *gorm.DB
	Logger    *logrus.Logger
	WorkerID  string
	BatchSize int
	Interval  time.Duration
	LockTTL   time.Duration
	Retry     retryPolicy
}

func NewOutboxDirectProcessor(db *gorm.DB, logger *logrus.Logger) *OutboxDirectProcessor {
	return &OutboxDirectProcessor{
		DB:        db,
		Logger:    logger,
		WorkerID:  "direct-" + time.Now().Format("20060102-150405.000"),
		BatchSize: 50,
		Interval:  2 * time.Second,
		LockTTL:   30 * time.Second,
		Retry:     retryPolicyFromEnv(),
	}
}

func (p *OutboxDirectProcessor) Run(ctx context.Context) {
	if p == nil || p.DB == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval):
		}
	}
}

// ProcessOnce claims one batch and processes it; it returns how many rows succeeded.
func (p *OutboxDirectProcessor) ProcessOnce(ctx context.Context) int {
	now := time.Now().UTC()
	staleBefore := now.Add(-p.LockTTL)

	var claimed []models.OutboxMessage
	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("is_processed = ?", false).
			Where("publish_status <> ?", models.OutboxPublishStatusDead).
			Where("(next_attempt_at IS NULL OR next_attempt_at <= ?)", now).
			Where("(locked_at IS NULL OR locked_at <= ?)", staleBefore).
			Order("id ASC").
			Limit(p.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.OutboxMessage{}).
				Where("id = ?", claimed[i].ID).
				Updates(map[string]interface{}{
					"locked_at":        &now,
					"locked_by":        &p.WorkerID,
					"publish_attempts": gorm.Expr("publish_attempts + 1"),
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		config.LogError(p.Logger, "workflow", "OutboxDirectProcessor.ProcessOnce", p.WorkerID, nil, err)
		return 0
	}

	done := 0
	for _, rec := range claimed {
		if err := ProcessMessage(ctx, p.Logger, models.ConvertToPubSubMessage(rec)); err != nil {
			markFailed(ctx, p.DB, p.Logger, p.Retry, "OutboxDirectProcessor", "last_process_error", rec.ID, err, rec.PublishAttempts)
			continue
		}
		_ = p.DB.WithContext(ctx).Model(&models.OutboxMessage{}).
			Where("id = ?", rec.ID).
			Updates(map[string]interface{}{
				"publish_status": models.OutboxPublishStatusSent,
				"locked_at":      nil,
				"locked_by":      nil,
			}).Error
		done++
	}
	return done
}
