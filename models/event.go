package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/church_backend/config"
	"github.com/mmdatafocus/church_backend/utils"
	"gorm.io/gorm"
)

type Event struct {
	ID          int         `gorm:"primary_key" json:"id"`
	Title       string      `gorm:"size:200;not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	StartAt     time.Time   `gorm:"not null;index" json:"start_at"`
	EndAt       time.Time   `gorm:"not null" json:"end_at"`
	Location    string      `gorm:"size:255" json:"location"`
	Capacity    int         `gorm:"not null" json:"capacity"`
	Status      EventStatus `gorm:"size:20;not null;index" json:"status"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e Event) GetId() int {
	return e.ID
}

type NewEvent struct {
	Title       string      `json:"title" binding:"required,max=200"`
	Description string      `json:"description"`
	StartAt     time.Time   `json:"start_at" binding:"required"`
	EndAt       time.Time   `json:"end_at" binding:"required"`
	Location    string      `json:"location" binding:"max=255"`
	Capacity    int         `json:"capacity" binding:"gte=0"`
	Status      EventStatus `json:"status" binding:"omitempty,oneof=scheduled cancelled completed"`
}

type EventFilter struct {
	Status string     `form:"status" json:"status"`
	From   *time.Time `form:"from" json:"from"`
	To     *time.Time `form:"to" json:"to"`
	PageParams
}

func (input *NewEvent) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.EndAt.Before(input.StartAt) {
		return utils.NewValidationError("end_at", "must be on or after start_at")
	}
	if input.Status == "" {
		input.Status = EventStatusScheduled
	}
	return nil
}

func CreateEvent(ctx context.Context, input *NewEvent) (*Event, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	event := Event{
		Title:       input.Title,
		Description: input.Description,
		StartAt:     input.StartAt,
		EndAt:       input.EndAt,
		Location:    input.Location,
		Capacity:    input.Capacity,
		Status:      input.Status,
	}
	if err := config.GetDB().WithContext(ctx).Create(&event).Error; err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisList[Event](); err != nil {
		return nil, err
	}
	return &event, nil
}

func UpdateEvent(ctx context.Context, id int, input *NewEvent) (*Event, error) {
	event, err := utils.FetchModel[Event](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Model(event).Updates(map[string]interface{}{
		"title":       input.Title,
		"description": input.Description,
		"start_at":    input.StartAt,
		"end_at":      input.EndAt,
		"location":    input.Location,
		"capacity":    input.Capacity,
		"status":      input.Status,
	}).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Event](id); err != nil {
		return nil, err
	}
	return utils.FetchModel[Event](ctx, id)
}

func DeleteEvent(ctx context.Context, id int) (*Event, error) {
	event, err := utils.FetchModel[Event](ctx, id)
	if err != nil {
		return nil, err
	}
	err = withTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Where("reference_type = ? AND reference_id = ?", AttendanceReferenceEvent, id).Delete(&Attendance{}).Error; err != nil {
			return err
		}
		return tx.Delete(event).Error
	})
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedisBoth[Event](id); err != nil {
		return nil, err
	}
	return event, nil
}

func GetEvent(ctx context.Context, id int) (*Event, error) {
	return GetResource[Event](ctx, id)
}

func ListEvents(ctx context.Context, filter EventFilter) (*Page[Event], error) {
	return utils.RememberList[Event](filter, func() (*Page[Event], error) {
		q := config.GetDB().WithContext(ctx).Model(&Event{})
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.From != nil {
			q = q.Where("start_at >= ?", *filter.From)
		}
		if filter.To != nil {
			q = q.Where("start_at < ?", *filter.To)
		}
		return Paginate[Event](q, filter.PageParams, "start_at, id")
	})
}

// CheckIn records attendance of a member at a church-wide event.
func CheckIn(ctx context.Context, eventId int, memberId int) (*Attendance, error) {
	if err := utils.ValidateResourceId[Member](ctx, memberId); err != nil {
		return nil, utils.NewValidationError("member_id", "does not exist")
	}
	var result *Attendance
	err := withTx(ctx, func(tx *gorm.DB) error {
		event, err := utils.LockModel[Event](tx, eventId)
		if err != nil {
			return err
		}
		if event.Status == EventStatusCancelled {
			return utils.NewBusinessError("event is cancelled")
		}
		result, err = recordAttendance(tx, AttendanceReferenceEvent, eventId, memberId, event.Capacity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
