package models

import (
	"context"
	"encoding/json"
	"math"

	"github.com/google/uuid"
	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

type Resource interface {
	GetId() int
}

// first find in redis, then in db, cache result
// (may return RecordNotFound error)
func GetResource[T Resource](ctx context.Context, id int, associations ...string) (*T, error) {
	result, err := utils.RetrieveRedis[T](id)
	if err != nil {
		config.LogError(config.GetLogger(), "models", "GetResource", "RetrieveRedis", id, err)
		result = nil
	}
	if result != nil {
		return result, nil
	}

	result, err = utils.FetchModel[T](ctx, id, associations...)
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis[T](result, id); err != nil {
		config.LogError(config.GetLogger(), "models", "GetResource", "StoreRedis", id, err)
	}
	return result, nil
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type PageParams struct {
	Page    int `form:"page" json:"page"`
	PerPage int `form:"per_page" json:"per_page"`
}

func (p PageParams) normalize() (int, int) {
	page, perPage := p.Page, p.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

type Pagination struct {
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
}

type Page[T any] struct {
	Items      []*T       `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// Paginate counts and fetches one page of q, which must already carry Model and filters.
func Paginate[T any](q *gorm.DB, params PageParams, order string) (*Page[T], error) {
	page, perPage := params.normalize()

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}
	items := make([]*T, 0, perPage)
	err := q.Session(&gorm.Session{}).
		Order(order).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	lastPage := int(math.Ceil(float64(total) / float64(perPage)))
	if lastPage < 1 {
		lastPage = 1
	}
	return &Page[T]{
		Items: items,
		Pagination: Pagination{
			Page:     page,
			PerPage:  perPage,
			Total:    total,
			LastPage: lastPage,
		},
	}, nil
}

// publishEvent writes an outbox row inside the caller's transaction.
// The dispatcher (or the direct processor) delivers it after commit.
func publishEvent(tx *gorm.DB, eventType OutboxEventType, referenceType string, referenceId int, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := OutboxMessage{
		EventType:     eventType,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
		Payload:       b,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(tx.Statement.Context),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// withTx runs fn in a transaction bound to ctx.
func withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return config.GetDB().WithContext(ctx).Transaction(fn)
}
