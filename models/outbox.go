package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
)

type OutboxMessage struct {
	ID            int             `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType     OutboxEventType `gorm:"size:50;not null;index" json:"event_type"`
	ReferenceType string          `gorm:"size:50;not null" json:"reference_type"`
	ReferenceId   int             `gorm:"not null" json:"reference_id"`
	Payload       []byte          `gorm:"type:blob" json:"payload"`
	IsProcessed   bool            `gorm:"index;not null" json:"is_processed"`
	// publish happens after commit via the dispatcher (PENDING|PROCESSING|SENT|FAILED|DEAD)
	PublishStatus    string     `gorm:"size:20;index;not null;index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	LastProcessError *string    `gorm:"type:text" json:"last_process_error"`
	ProcessedAt      *time.Time `json:"processed_at"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToPubSubMessage(record OutboxMessage) config.PubSubMessage {
	return config.PubSubMessage{
		ID:            record.ID,
		EventType:     string(record.EventType),
		ReferenceId:   record.ReferenceId,
		ReferenceType: record.ReferenceType,
		Payload:       record.Payload,
		OccurredAt:    record.CreatedAt,
		CorrelationId: record.CorrelationId,
	}
}

// MarkOutboxProcessed is called by consumers once the side effect (email, etc.) succeeded.
func MarkOutboxProcessed(ctx context.Context, id int) error {
	now := time.Now().UTC()
	return config.GetDB().WithContext(ctx).Model(&OutboxMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_processed":       true,
			"processed_at":       &now,
			"last_process_error": nil,
		}).Error
}

func MarkOutboxProcessFailed(ctx context.Context, id int, err error) error {
	msg := err.Error()
	return config.GetDB().WithContext(ctx).Model(&OutboxMessage{}).
		Where("id = ?", id).
		Update("last_process_error", &msg).Error
}

// ReplayOutboxMessage puts a DEAD/FAILED row back in the dispatch queue.
func ReplayOutboxMessage(ctx context.Context, id int) (*OutboxMessage, error) {
	rec, err := utils.FetchModel[OutboxMessage](ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.IsProcessed {
		return nil, utils.NewBusinessError("outbox message %d was already processed", id)
	}
	now := time.Now().UTC()
	err = config.GetDB().WithContext(ctx).Model(rec).Updates(map[string]interface{}{
		"publish_status":     OutboxPublishStatusFailed,
		"next_attempt_at":    &now,
		"locked_at":          nil,
		"locked_by":          nil,
		"last_publish_error": nil,
	}).Error
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[OutboxMessage](ctx, id)
}
